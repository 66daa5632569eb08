package descriptor

import "fmt"

// ClassificationErrorKind is a stable, machine-readable classification
// failure reason.
type ClassificationErrorKind string

const (
	KindMissingProject      ClassificationErrorKind = "missing_project"
	KindMissingMetadata     ClassificationErrorKind = "missing_metadata"
	KindNoServiceDetected   ClassificationErrorKind = "no_service_detected"
)

// ClassificationError reports why classify could not produce a DeploymentUnit.
type ClassificationError struct {
	Kind   ClassificationErrorKind
	Path   string
	Detail string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %s: %s", e.Path, e.Kind, e.Detail)
}
