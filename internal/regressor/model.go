// Package regressor evaluates gradient-boosted tree models saved in XGBoost's native JSON format.
package regressor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ModelLoadError reports a missing or malformed model artifact
type ModelLoadError struct {
	Path string
	Err  error
}

func (e *ModelLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("loading model: %v", e.Err)
	}
	return fmt.Sprintf("loading model from %s: %v", e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// link maps between the output space and the margin space of an objective
type link int

const (
	identityLink link = iota
	logLink
)

var objectiveLinks = map[string]link{
	"reg:squarederror":     identityLink,
	"reg:linear":           identityLink,
	"reg:squaredlogerror":  identityLink,
	"reg:absoluteerror":    identityLink,
	"reg:pseudohubererror": identityLink,
	"reg:quantileerror":    identityLink,
	"reg:gamma":            logLink,
	"reg:tweedie":          logLink,
	"count:poisson":        logLink,
}

// node is one tree node. Leaves have left == -1 and carry their value in split.
type node struct {
	left        int32
	right       int32
	feature     int32
	split       float32
	defaultLeft bool
}

type tree struct {
	nodes []node
}

func (t *tree) leaf(row []float32) float32 {
	i := int32(0)
	for {
		n := &t.nodes[i]
		if n.left < 0 {
			return n.split
		}
		x := row[n.feature]
		switch {
		case x != x: // NaN
			if n.defaultLeft {
				i = n.left
			} else {
				i = n.right
			}
		case x < n.split:
			i = n.left
		default:
			i = n.right
		}
	}
}

// Model is an immutable tree ensemble. Predict is safe for concurrent use.
type Model struct {
	trees        []tree
	baseMargin   float32
	link         link
	objective    string
	numFeature   int
	featureNames []string
	version      []int
}

// LoadFile reads a model from an XGBoost JSON file
func LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}

	m, err := Parse(bytes.NewReader(data))
	if err != nil {
		var le *ModelLoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return m, nil
}

// Parse reads a model in XGBoost JSON format from r
func Parse(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ModelLoadError{Err: fmt.Errorf("reading model JSON: %w", err)}
	}

	var doc modelDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ModelLoadError{Err: fmt.Errorf("parsing model JSON: %w", err)}
	}

	m, err := doc.build()
	if err != nil {
		return nil, &ModelLoadError{Err: err}
	}
	return m, nil
}

// Predict evaluates the model on a single feature row
func (m *Model) Predict(features []float64) (float64, error) {
	if len(features) != m.numFeature {
		return 0, fmt.Errorf("feature row has %d values, model expects %d", len(features), m.numFeature)
	}

	row := make([]float32, len(features))
	for i, v := range features {
		row[i] = float32(v)
	}

	out := m.baseMargin
	for i := range m.trees {
		out += m.trees[i].leaf(row)
	}

	if m.link == logLink {
		return math.Exp(float64(out)), nil
	}
	return float64(out), nil
}

// NumTrees returns the number of trees in the ensemble
func (m *Model) NumTrees() int { return len(m.trees) }

// NumFeature returns the row width the model expects
func (m *Model) NumFeature() int { return m.numFeature }

// FeatureNames returns the training column names, or nil when the model was saved without them
func (m *Model) FeatureNames() []string { return append([]string(nil), m.featureNames...) }

// Objective returns the training objective name
func (m *Model) Objective() string { return m.objective }

// Version returns the XGBoost version that saved the model
func (m *Model) Version() string {
	parts := make([]string, len(m.version))
	for i, v := range m.version {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}
