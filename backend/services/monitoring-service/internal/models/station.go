package models

// Station is a swap station as listed by the station catalog.
type Station struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Address string `db:"address" json:"address"`
}
