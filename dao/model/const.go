package model

// RoleAdmin is the role name that unlocks the admin API.
const RoleAdmin = "admin"

// Device frame a result screenshot is rendered in.
type ResultImageType string

const (
	ResultImageTablet     ResultImageType = "tablet"
	ResultImageSmartphone ResultImageType = "smartphone"
)

// ResultImageTypeAt returns the frame for the result image at position idx:
// the first image is shown on a tablet, every following one on a smartphone.
func ResultImageTypeAt(idx int) ResultImageType {
	if idx == 0 {
		return ResultImageTablet
	}
	return ResultImageSmartphone
}

// Upload subdirectories, relative to the uploads root.
const (
	StagesDir  = "stages"
	ResultsDir = "results"
)

const DefaultFolderPerm = 0755
