// Package features builds the fixed-order feature row the response-time model consumes.
package features

// Column positions. Reordering them silently invalidates every prediction.
const (
	HourOfCall = iota
	IncidentGroup
	IncidentStationGround
	PropertyCategory
	BoroughName
	DeployedFromStation
	IncidentLatitude
	IncidentLongitude
	StationLatitude
	StationLongitude
	DistanceToStation

	Len
)

// ColumnNames are the training-time column names, in model order
var ColumnNames = [Len]string{
	"HourOfCall_x",
	"IncidentGroup",
	"IncidentStationGround",
	"PropertyCategory",
	"IncGeo_BoroughName",
	"DeployedFromStation_Name",
	"IncidentLatitude",
	"IncidentLongitude",
	"StationLatitude",
	"StationLongitude",
	"DistanceToStation",
}

// Vector is one model input row
type Vector [Len]float64

// Assemble places the inputs in model order. Range checks belong to the caller.
func Assemble(
	hour int,
	incidentGroupCode, stationGroundCode, propertyCode, boroughCode, deployedFromCode int,
	incidentLat, incidentLng float64,
	stationLat, stationLng float64,
	distance float64,
) Vector {
	return Vector{
		HourOfCall:            float64(hour),
		IncidentGroup:         float64(incidentGroupCode),
		IncidentStationGround: float64(stationGroundCode),
		PropertyCategory:      float64(propertyCode),
		BoroughName:           float64(boroughCode),
		DeployedFromStation:   float64(deployedFromCode),
		IncidentLatitude:      incidentLat,
		IncidentLongitude:     incidentLng,
		StationLatitude:       stationLat,
		StationLongitude:      stationLng,
		DistanceToStation:     distance,
	}
}

// Slice returns the row as a slice for model evaluation
func (v Vector) Slice() []float64 {
	return v[:]
}

// Map returns the row keyed by column name, for logging and debugging
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Len)
	for i, name := range ColumnNames {
		m[name] = v[i]
	}
	return m
}
