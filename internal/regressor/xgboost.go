package regressor

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// modelDoc mirrors the parts of XGBoost's JSON schema needed for inference
type modelDoc struct {
	Learner struct {
		FeatureNames    []string `json:"feature_names"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees []treeDoc `json:"trees"`
			} `json:"model"`
		} `json:"gradient_booster"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumClass   string `json:"num_class"`
			NumFeature string `json:"num_feature"`
			NumTarget  string `json:"num_target"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
	Version []int `json:"version"`
}

type treeDoc struct {
	LeftChildren    []int32   `json:"left_children"`
	RightChildren   []int32   `json:"right_children"`
	SplitIndices    []int32   `json:"split_indices"`
	SplitConditions []float32 `json:"split_conditions"`
	DefaultLeft     []flag    `json:"default_left"`
	SplitType       []int     `json:"split_type"`
}

// flag accepts both 0/1 and true/false, which differ across XGBoost releases
type flag bool

func (f *flag) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "true", "1":
		*f = true
	case "false", "0":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %s", b)
	}
	return nil
}

func (d *modelDoc) build() (*Model, error) {
	learner := &d.Learner

	if name := learner.GradientBooster.Name; name != "gbtree" {
		return nil, fmt.Errorf("unsupported booster %q", name)
	}

	objective := learner.Objective.Name
	lnk, ok := objectiveLinks[objective]
	if !ok {
		return nil, fmt.Errorf("unsupported objective %q", objective)
	}

	params := learner.LearnerModelParam
	if n, err := parseIntParam(params.NumClass); err != nil || n > 1 {
		return nil, fmt.Errorf("multi-class models are not supported (num_class=%q)", params.NumClass)
	}
	if n, err := parseIntParam(params.NumTarget); err != nil || n > 1 {
		return nil, fmt.Errorf("multi-target models are not supported (num_target=%q)", params.NumTarget)
	}

	numFeature, err := parseIntParam(params.NumFeature)
	if err != nil || numFeature <= 0 {
		return nil, fmt.Errorf("invalid num_feature %q", params.NumFeature)
	}
	if len(learner.FeatureNames) > 0 && len(learner.FeatureNames) != numFeature {
		return nil, fmt.Errorf("model has %d feature names but num_feature=%d", len(learner.FeatureNames), numFeature)
	}

	baseScore, err := parseBaseScore(params.BaseScore)
	if err != nil {
		return nil, err
	}
	baseMargin := baseScore
	if lnk == logLink {
		if baseScore <= 0 {
			return nil, fmt.Errorf("base_score %v must be positive for %s", baseScore, objective)
		}
		baseMargin = math.Log(baseScore)
	}

	docs := learner.GradientBooster.Model.Trees
	if len(docs) == 0 {
		return nil, fmt.Errorf("model has no trees")
	}
	trees := make([]tree, len(docs))
	for i := range docs {
		t, err := docs[i].build(numFeature)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees[i] = t
	}

	return &Model{
		trees:        trees,
		baseMargin:   float32(baseMargin),
		link:         lnk,
		objective:    objective,
		numFeature:   numFeature,
		featureNames: learner.FeatureNames,
		version:      d.Version,
	}, nil
}

func (d *treeDoc) build(numFeature int) (tree, error) {
	n := len(d.LeftChildren)
	if n == 0 {
		return tree{}, fmt.Errorf("tree has no nodes")
	}
	if len(d.RightChildren) != n || len(d.SplitIndices) != n ||
		len(d.SplitConditions) != n || len(d.DefaultLeft) != n {
		return tree{}, fmt.Errorf("node arrays have inconsistent lengths")
	}

	nodes := make([]node, n)
	for i := 0; i < n; i++ {
		left, right := d.LeftChildren[i], d.RightChildren[i]
		nd := node{
			left:        left,
			right:       right,
			feature:     d.SplitIndices[i],
			split:       d.SplitConditions[i],
			defaultLeft: bool(d.DefaultLeft[i]),
		}

		if left == -1 {
			nd.left, nd.right = -1, -1
			nodes[i] = nd
			continue
		}
		if len(d.SplitType) == n && d.SplitType[i] != 0 {
			return tree{}, fmt.Errorf("node %d: categorical splits are not supported", i)
		}
		// Children always follow their parent, which also rules out cycles.
		if left <= int32(i) || right <= int32(i) || int(left) >= n || int(right) >= n {
			return tree{}, fmt.Errorf("node %d: child index out of range (%d, %d)", i, left, right)
		}
		if nd.feature < 0 || int(nd.feature) >= numFeature {
			return tree{}, fmt.Errorf("node %d: split feature %d out of range", i, nd.feature)
		}
		nodes[i] = nd
	}

	return tree{nodes: nodes}, nil
}

func parseIntParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// parseBaseScore handles both "5E-1" and the bracketed "[5E-1]" written by newer releases
func parseBaseScore(s string) (float64, error) {
	trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "[]"))
	if trimmed == "" {
		return 0.5, nil
	}
	if strings.Contains(trimmed, ",") {
		return 0, fmt.Errorf("vector base_score %q is not supported", s)
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid base_score %q: %w", s, err)
	}
	return v, nil
}

var _ json.Unmarshaler = (*flag)(nil)
