package asset

import (
	"fmt"
	"strings"
)

const mrnScheme = "mrn://"

// BuildMRN returns mrn://<namespace>/<lower(type)>/<name>. It is a pure
// function of the identity fields.
func BuildMRN(namespace string, typ Type, name string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return mrnScheme + namespace + "/" + typ.Key() + "/" + name
}

// ParseMRN splits an MRN into its parts. The name may itself contain
// slashes.
func ParseMRN(mrn string) (namespace, typ, name string, err error) {
	if !strings.HasPrefix(mrn, mrnScheme) {
		return "", "", "", fmt.Errorf("invalid mrn %q: missing %s prefix", mrn, mrnScheme)
	}
	parts := strings.SplitN(strings.TrimPrefix(mrn, mrnScheme), "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("invalid mrn %q: expected mrn://<namespace>/<type>/<name>", mrn)
	}
	return parts[0], parts[1], parts[2], nil
}
