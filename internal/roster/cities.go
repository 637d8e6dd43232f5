package roster

// Cities is the fixed ingestion roster in batch order. The fetch key is the
// weather query ("Name,CC"); the display name feeds air-quality lookups.
var Cities = []CityPair{
	{FetchKey: "Ann Arbor,US", DisplayName: "Ann Arbor"},
	{FetchKey: "Chicago,US", DisplayName: "Chicago"},
	{FetchKey: "New York,US", DisplayName: "New York"},
	{FetchKey: "Los Angeles,US", DisplayName: "Los Angeles"},
	{FetchKey: "San Francisco,US", DisplayName: "San Francisco"},
	{FetchKey: "Houston,US", DisplayName: "Houston"},
	{FetchKey: "Dallas,US", DisplayName: "Dallas"},
	{FetchKey: "Miami,US", DisplayName: "Miami"},
	{FetchKey: "Seattle,US", DisplayName: "Seattle"},
	{FetchKey: "Boston,US", DisplayName: "Boston"},
	{FetchKey: "Phoenix,US", DisplayName: "Phoenix"},
	{FetchKey: "Philadelphia,US", DisplayName: "Philadelphia"},
	{FetchKey: "Atlanta,US", DisplayName: "Atlanta"},
	{FetchKey: "Denver,US", DisplayName: "Denver"},
	{FetchKey: "San Diego,US", DisplayName: "San Diego"},
	{FetchKey: "Austin,US", DisplayName: "Austin"},
	{FetchKey: "Portland,US", DisplayName: "Portland"},
	{FetchKey: "Tampa,US", DisplayName: "Tampa"},
	{FetchKey: "Orlando,US", DisplayName: "Orlando"},
	{FetchKey: "Las Vegas,US", DisplayName: "Las Vegas"},
	{FetchKey: "San Antonio,US", DisplayName: "San Antonio"},
	{FetchKey: "San Jose,US", DisplayName: "San Jose"},
	{FetchKey: "Indianapolis,US", DisplayName: "Indianapolis"},
	{FetchKey: "Columbus,US", DisplayName: "Columbus"},
	{FetchKey: "Charlotte,US", DisplayName: "Charlotte"},
	{FetchKey: "Baltimore,US", DisplayName: "Baltimore"},
	{FetchKey: "Nashville,US", DisplayName: "Nashville"},
	{FetchKey: "Louisville,US", DisplayName: "Louisville"},
	{FetchKey: "Milwaukee,US", DisplayName: "Milwaukee"},
	{FetchKey: "Cleveland,US", DisplayName: "Cleveland"},
	{FetchKey: "Cincinnati,US", DisplayName: "Cincinnati"},
	{FetchKey: "Pittsburgh,US", DisplayName: "Pittsburgh"},
	{FetchKey: "Kansas City,US", DisplayName: "Kansas City"},
	{FetchKey: "St. Louis,US", DisplayName: "St. Louis"},
	{FetchKey: "Salt Lake City,US", DisplayName: "Salt Lake City"},
	{FetchKey: "Raleigh,US", DisplayName: "Raleigh"},
	{FetchKey: "Richmond,US", DisplayName: "Richmond"},
	{FetchKey: "Minneapolis,US", DisplayName: "Minneapolis"},
	{FetchKey: "Saint Paul,US", DisplayName: "Saint Paul"},
	{FetchKey: "Detroit,US", DisplayName: "Detroit"},
	{FetchKey: "Toronto,CA", DisplayName: "Toronto"},
	{FetchKey: "Vancouver,CA", DisplayName: "Vancouver"},
	{FetchKey: "Montreal,CA", DisplayName: "Montreal"},
	{FetchKey: "London,GB", DisplayName: "London"},
	{FetchKey: "Paris,FR", DisplayName: "Paris"},
	{FetchKey: "Berlin,DE", DisplayName: "Berlin"},
	{FetchKey: "Madrid,ES", DisplayName: "Madrid"},
	{FetchKey: "Rome,IT", DisplayName: "Rome"},
	{FetchKey: "Amsterdam,NL", DisplayName: "Amsterdam"},
	{FetchKey: "Vienna,AT", DisplayName: "Vienna"},
	{FetchKey: "Copenhagen,DK", DisplayName: "Copenhagen"},
	{FetchKey: "Stockholm,SE", DisplayName: "Stockholm"},
	{FetchKey: "Oslo,NO", DisplayName: "Oslo"},
	{FetchKey: "Helsinki,FI", DisplayName: "Helsinki"},
	{FetchKey: "Tokyo,JP", DisplayName: "Tokyo"},
	{FetchKey: "Seoul,KR", DisplayName: "Seoul"},
	{FetchKey: "Sydney,AU", DisplayName: "Sydney"},
	{FetchKey: "Melbourne,AU", DisplayName: "Melbourne"},
	{FetchKey: "Brisbane,AU", DisplayName: "Brisbane"},
	{FetchKey: "Perth,AU", DisplayName: "Perth"},
	{FetchKey: "Auckland,NZ", DisplayName: "Auckland"},
	{FetchKey: "Mexico City,MX", DisplayName: "Mexico City"},
	{FetchKey: "Guadalajara,MX", DisplayName: "Guadalajara"},
	{FetchKey: "Monterrey,MX", DisplayName: "Monterrey"},
	{FetchKey: "Bogota,CO", DisplayName: "Bogota"},
	{FetchKey: "Lima,PE", DisplayName: "Lima"},
	{FetchKey: "Santiago,CL", DisplayName: "Santiago"},
	{FetchKey: "Buenos Aires,AR", DisplayName: "Buenos Aires"},
	{FetchKey: "Sao Paulo,BR", DisplayName: "Sao Paulo"},
	{FetchKey: "Rio de Janeiro,BR", DisplayName: "Rio de Janeiro"},
	{FetchKey: "Johannesburg,ZA", DisplayName: "Johannesburg"},
	{FetchKey: "Cape Town,ZA", DisplayName: "Cape Town"},
	{FetchKey: "Cairo,EG", DisplayName: "Cairo"},
	{FetchKey: "Nairobi,KE", DisplayName: "Nairobi"},
	{FetchKey: "Lagos,NG", DisplayName: "Lagos"},
	{FetchKey: "Istanbul,TR", DisplayName: "Istanbul"},
	{FetchKey: "Athens,GR", DisplayName: "Athens"},
	{FetchKey: "Zurich,CH", DisplayName: "Zurich"},
	{FetchKey: "Geneva,CH", DisplayName: "Geneva"},
	{FetchKey: "Prague,CZ", DisplayName: "Prague"},
	{FetchKey: "Budapest,HU", DisplayName: "Budapest"},
	{FetchKey: "Warsaw,PL", DisplayName: "Warsaw"},
	{FetchKey: "Krakow,PL", DisplayName: "Krakow"},
	{FetchKey: "Dublin,IE", DisplayName: "Dublin"},
	{FetchKey: "Edinburgh,GB", DisplayName: "Edinburgh"},
	{FetchKey: "Birmingham,GB", DisplayName: "Birmingham"},
	{FetchKey: "Manchester,GB", DisplayName: "Manchester"},
	{FetchKey: "Glasgow,GB", DisplayName: "Glasgow"},
	{FetchKey: "Brussels,BE", DisplayName: "Brussels"},
	{FetchKey: "Lisbon,PT", DisplayName: "Lisbon"},
	{FetchKey: "Hong Kong,HK", DisplayName: "Hong Kong"},
	{FetchKey: "Singapore,SG", DisplayName: "Singapore"},
	{FetchKey: "Bangkok,TH", DisplayName: "Bangkok"},
	{FetchKey: "Kuala Lumpur,MY", DisplayName: "Kuala Lumpur"},
	{FetchKey: "Jakarta,ID", DisplayName: "Jakarta"},
	{FetchKey: "Manila,PH", DisplayName: "Manila"},
	{FetchKey: "Delhi,IN", DisplayName: "Delhi"},
	{FetchKey: "Mumbai,IN", DisplayName: "Mumbai"},
	{FetchKey: "Bengaluru,IN", DisplayName: "Bengaluru"},
	{FetchKey: "Chennai,IN", DisplayName: "Chennai"},
}
