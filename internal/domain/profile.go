package domain

// Settings bundles the thresholds the recognition coordinator applies.
// ConfidenceThreshold is a Euclidean distance cutoff, not a percentage.
type Settings struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	MinFaceSize         int     `json:"min_face_size"`
	MaxFaceSize         int     `json:"max_face_size"`
	DetectionConfidence float64 `json:"detection_confidence"`
}

// Profile is a named threshold preset applied over the current settings.
type Profile struct {
	Name                string  `json:"name"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	DetectionConfidence float64 `json:"detection_confidence"`
}

const (
	ProfileHighSecurity = "high_security"
	ProfileBalanced     = "balanced"
	ProfileFast         = "fast"
	ProfilePermissive   = "permissive"
)

var profiles = []Profile{
	{Name: ProfileHighSecurity, ConfidenceThreshold: 0.25, DetectionConfidence: 0.9},
	{Name: ProfileBalanced, ConfidenceThreshold: 0.42, DetectionConfidence: 0.8},
	{Name: ProfileFast, ConfidenceThreshold: 0.55, DetectionConfidence: 0.7},
	{Name: ProfilePermissive, ConfidenceThreshold: 0.65, DetectionConfidence: 0.6},
}

// Profiles returns the available presets in fixed order.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// ProfileByName looks up a preset. The second return is false for unknown
// names.
func ProfileByName(name string) (Profile, bool) {
	for _, p := range profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Apply overlays the profile's thresholds on s, keeping face-size bounds.
func (p Profile) Apply(s Settings) Settings {
	s.ConfidenceThreshold = p.ConfidenceThreshold
	s.DetectionConfidence = p.DetectionConfidence
	return s
}
