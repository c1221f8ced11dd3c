package asset

import "strings"

// Common asset types. Type is an open set; any non-empty string is
// accepted and these are only the ones the catalog renders specially.
const (
	TypeTopic     Type = "Topic"
	TypeDatabase  Type = "Database"
	TypeBucket    Type = "Bucket"
	TypeService   Type = "Service"
	TypeTable     Type = "Table"
	TypeQueue     Type = "Queue"
	TypeDashboard Type = "Dashboard"
	TypeJob       Type = "Job"
	TypeModel     Type = "Model"
	TypePipeline  Type = "Pipeline"
)

// KnownTypes holds the types listed in the package schema.
var KnownTypes = []Type{
	TypeTopic,
	TypeDatabase,
	TypeBucket,
	TypeService,
	TypeTable,
	TypeQueue,
	TypeDashboard,
	TypeJob,
	TypeModel,
	TypePipeline,
}

// Type names the kind of an asset.
type Type string

// String cast Type to string
func (t Type) String() string {
	return string(t)
}

// IsKnown reports whether t is one of KnownTypes, ignoring case.
func (t Type) IsKnown() bool {
	for _, known := range KnownTypes {
		if strings.EqualFold(string(t), string(known)) {
			return true
		}
	}
	return false
}

// Key is the lower case form used inside MRNs.
func (t Type) Key() string {
	return strings.ToLower(string(t))
}
