package predict

import (
	"fmt"

	"github.com/randytsao24/brigade/internal/encoding"
	"github.com/randytsao24/brigade/internal/features"
	"github.com/randytsao24/brigade/internal/location"
	"github.com/randytsao24/brigade/internal/regressor"
)

// Regressor evaluates a trained model on one feature row
type Regressor interface {
	Predict(features []float64) (float64, error)
}

// Paths locates the artifacts written by the training pipeline
type Paths struct {
	Model    string
	Encoders string
	Stations string
}

// Artifacts are the read-only inputs shared by every prediction
type Artifacts struct {
	Stations *location.StationService
	Encoders *encoding.Encoders
	Model    Regressor
}

// LoadArtifacts loads the model, the encoder tables and the station roster
func LoadArtifacts(paths Paths) (*Artifacts, error) {
	model, err := regressor.LoadFile(paths.Model)
	if err != nil {
		return nil, err
	}
	if err := checkModel(model); err != nil {
		return nil, &regressor.ModelLoadError{Path: paths.Model, Err: err}
	}

	enc, err := encoding.Load(paths.Encoders)
	if err != nil {
		return nil, err
	}

	stations := location.NewStationService()
	if err := stations.Load(paths.Stations); err != nil {
		return nil, err
	}

	return &Artifacts{
		Stations: stations,
		Encoders: enc,
		Model:    model,
	}, nil
}

// UnencodedStations lists roster stations missing from either station encoder table.
// Predictions for them use the fallback code.
func (a *Artifacts) UnencodedStations() []string {
	var missing []string
	for _, st := range a.Stations.Stations() {
		_, ground := a.Encoders.Lookup(encoding.IncidentStationGround, st.Name)
		_, deployed := a.Encoders.Lookup(encoding.DeployedFromStation, st.Name)
		if !ground || !deployed {
			missing = append(missing, st.Name)
		}
	}
	return missing
}

// checkModel rejects models trained on a different feature layout
func checkModel(m *regressor.Model) error {
	if m.NumFeature() != features.Len {
		return fmt.Errorf("model expects %d features, pipeline produces %d", m.NumFeature(), features.Len)
	}
	names := m.FeatureNames()
	if names == nil {
		return nil
	}
	for i, name := range names {
		if name != features.ColumnNames[i] {
			return fmt.Errorf("feature %d is %q in the model but %q in the pipeline", i, name, features.ColumnNames[i])
		}
	}
	return nil
}
