package model

// Point is a geographic position in GeoJSON order (longitude, latitude).
type Point struct {
	Lon float64 `json:"longitude"`
	Lat float64 `json:"latitude"`
}

// Site is a cultural point of interest imported from open data.
type Site struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	Location    Point                  `json:"location"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
}
