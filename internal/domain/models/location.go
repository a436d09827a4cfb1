// internal/domain/models/location.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Location levels, broadest to narrowest.
const (
	LevelProvince     = "province"
	LevelDistrict     = "district"
	LevelMunicipality = "municipality"
	LevelBarangay     = "barangay"
)

// Location is one node in the geographic hierarchy. Code is a PSGC-style
// string identifier and is what every other document references; ParentCode
// links to the enclosing unit (empty for provinces).
type Location struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code       string             `bson:"code" json:"code"`
	Name       string             `bson:"name" json:"name"`
	Level      string             `bson:"level" json:"level"`
	ParentCode string             `bson:"parent_code,omitempty" json:"parent_code,omitempty"`
}
