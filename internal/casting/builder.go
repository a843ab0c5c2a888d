// Package casting translates typed character requests into the node overrides
// of the character workflow deployment. It is the only package that knows the
// workflow's node numbering.
package casting

import (
	"errors"
	"strings"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/runcomfy"
)

var (
	ErrPromptRequired    = errors.New("casting: prompt is required")
	ErrOutfitRequired    = errors.New("casting: outfit prompt is required")
	ErrFaceImageRequired = errors.New("casting: face image is required")
	ErrInvalidOption     = errors.New("casting: invalid option")
)

// Sampler step counts. A sampler run for a single step is effectively off.
const (
	FaceSteps     = 25
	SceneSteps    = 30
	disabledSteps = 1
)

// Layout names the workflow nodes the builder writes to and reads from.
type Layout struct {
	FaceSampler    string
	BatchSize      string
	SceneSampler   string
	PromptMaker    string
	FaceText       string
	ReferenceImage string
	OutfitText     string
	FaceOutput     string
	SceneOutput    string
}

// DefaultLayout returns the node ids of the character deployment.
func DefaultLayout() Layout {
	return Layout{
		FaceSampler:    "47",
		BatchSize:      "24",
		SceneSampler:   "27",
		PromptMaker:    "11",
		FaceText:       "10",
		ReferenceImage: "85",
		OutfitText:     "55",
		FaceOutput:     "84",
		SceneOutput:    "54",
	}
}

// FaceRequest describes a batch of face candidates.
type FaceRequest struct {
	Prompt      string `json:"prompt"`
	BatchSize   int    `json:"batch_size"`
	Shot        string `json:"shot"`
	Lighting    string `json:"lighting"`
	FaceShape   string `json:"face_shape"`
	EyesColor   string `json:"eyes_color"`
	Nationality string `json:"nationality"`
}

// Normalize applies defaults and canonicalizes option values.
func (r FaceRequest) Normalize() (FaceRequest, error) {
	out := FaceRequest{Prompt: strings.TrimSpace(r.Prompt), BatchSize: r.BatchSize}
	if out.Prompt == "" {
		return FaceRequest{}, ErrPromptRequired
	}
	if out.BatchSize <= 0 {
		out.BatchSize = DefaultBatchSize
	}
	if out.BatchSize > MaxBatchSize {
		out.BatchSize = MaxBatchSize
	}
	var err error
	if out.Shot, err = canonical("shot", r.Shot, DefaultShot, Shots); err != nil {
		return FaceRequest{}, err
	}
	if out.Lighting, err = canonical("lighting", r.Lighting, DefaultLighting, LightingTypes); err != nil {
		return FaceRequest{}, err
	}
	if out.FaceShape, err = canonical("face_shape", r.FaceShape, DefaultFaceShape, FaceShapes); err != nil {
		return FaceRequest{}, err
	}
	if out.EyesColor, err = canonical("eyes_color", r.EyesColor, DefaultEyesColor, EyesColors); err != nil {
		return FaceRequest{}, err
	}
	if out.Nationality, err = canonical("nationality", r.Nationality, DefaultNationality, Nationalities); err != nil {
		return FaceRequest{}, err
	}
	return out, nil
}

// SceneRequest describes a full-body shot of a chosen face.
type SceneRequest struct {
	// FaceImage is a URL or data URI of the selected face.
	FaceImage    string `json:"face_image"`
	OutfitPrompt string `json:"outfit_prompt"`
}

// FaceOverrides builds the overrides that run only the face branch.
func (l Layout) FaceOverrides(req FaceRequest) (runcomfy.Overrides, FaceRequest, error) {
	req, err := req.Normalize()
	if err != nil {
		return nil, FaceRequest{}, err
	}
	o := runcomfy.Overrides{}
	o.Set(l.FaceSampler, "steps", FaceSteps)
	o.Set(l.BatchSize, "batch_size", req.BatchSize)
	o.Set(l.SceneSampler, "steps", disabledSteps)
	o.Set(l.PromptMaker, "shot", req.Shot)
	o.Set(l.PromptMaker, "lighting_type", req.Lighting)
	o.Set(l.PromptMaker, "face_shape", req.FaceShape)
	o.Set(l.PromptMaker, "eyes_color", req.EyesColor)
	o.Set(l.PromptMaker, "nationality_1", req.Nationality)
	o.Set(l.FaceText, "text", req.Prompt)
	// The reference loader still needs an image while the scene branch is off.
	o.Set(l.ReferenceImage, "image", runcomfy.PlaceholderImage)
	return o, req, nil
}

// SceneOverrides builds the overrides that run only the scene branch.
func (l Layout) SceneOverrides(req SceneRequest) (runcomfy.Overrides, error) {
	face := strings.TrimSpace(req.FaceImage)
	if face == "" {
		return nil, ErrFaceImageRequired
	}
	outfit := strings.TrimSpace(req.OutfitPrompt)
	if outfit == "" {
		return nil, ErrOutfitRequired
	}
	o := runcomfy.Overrides{}
	o.Set(l.FaceSampler, "steps", disabledSteps)
	o.Set(l.SceneSampler, "steps", SceneSteps)
	o.Set(l.ReferenceImage, "image", face)
	o.Set(l.OutfitText, "text", outfit)
	return o, nil
}

// FaceExtraction selects the face candidates from a job result.
func (l Layout) FaceExtraction() runcomfy.Extraction {
	return extraction(l.FaceOutput)
}

// SceneExtraction selects the scene images from a job result.
func (l Layout) SceneExtraction() runcomfy.Extraction {
	return extraction(l.SceneOutput)
}

// extraction treats an empty node or "*" as every output node.
func extraction(node string) runcomfy.Extraction {
	node = strings.TrimSpace(node)
	if node == "" || node == "*" {
		return runcomfy.ExtractAll()
	}
	return runcomfy.ExtractNode(node)
}
