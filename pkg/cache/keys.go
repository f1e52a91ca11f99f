package cache

// Keyer generates cache keys.
type Keyer interface {
	// AssetKey returns the key for the bytes behind a source reference
	// (URL, path or data URI).
	AssetKey(ref string) string

	// ArtifactKey returns the key for a rendered output.
	ArtifactKey(requestHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts holds everything besides the request itself that changes
// the rendered bytes.
type ArtifactKeyOpts struct {
	Assets      []string `json:"assets"` // content hashes of the inputs, in request order
	Font        string   `json:"font"`
	JPEGQuality int      `json:"jpeg_quality"`
}

// DefaultKeyer is the standard key layout: "<kind>:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns a DefaultKeyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// AssetKey implements Keyer.
func (DefaultKeyer) AssetKey(ref string) string {
	return hashKey("asset", ref)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(requestHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", requestHash, opts)
}

var _ Keyer = DefaultKeyer{}
