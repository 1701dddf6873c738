// SPDX-License-Identifier: MPL-2.0

package project

import "strings"

type (
	// OptionalNamespace is implemented by extensions whose namespace may be
	// left unset and derived later. Both methods may fail; callers decide
	// whether a failure is fatal.
	OptionalNamespace interface {
		// TryGetNamespace returns the current namespace and whether it is set.
		TryGetNamespace() (string, bool, error)
		// TrySetNamespace assigns the namespace.
		TrySetNamespace(namespace string) error
	}

	// AndroidExtension holds the declarative android {} block of a project.
	// Zero values mean "not configured".
	AndroidExtension struct {
		Namespace       string
		ApplicationID   string
		CompileSDK      int
		MinSDK          int
		TargetSDK       int
		NDKVersion      string
		VersionCode     int
		VersionName     string
		MinifyEnabled   bool
		ShrinkResources bool
		// SigningConfig names the signing config used by release builds.
		SigningConfig string
	}

	// KotlinExtension holds kotlinOptions.
	KotlinExtension struct {
		JVMTarget string
	}

	// SigningDescriptor is the resolved signing configuration. Nil fields are
	// absent: the value was not provided by any property source.
	SigningDescriptor struct {
		KeyAlias      *string `json:"key_alias,omitempty" toml:"key_alias,omitempty"`
		KeyPassword   *string `json:"key_password,omitempty" toml:"key_password,omitempty"`
		StoreFile     *string `json:"store_file,omitempty" toml:"store_file,omitempty"`
		StorePassword *string `json:"store_password,omitempty" toml:"store_password,omitempty"`
	}
)

// TryGetNamespace returns the configured namespace.
func (a *AndroidExtension) TryGetNamespace() (string, bool, error) {
	return a.Namespace, a.Namespace != "", nil
}

// TrySetNamespace sets the namespace. Blank values are rejected.
func (a *AndroidExtension) TrySetNamespace(namespace string) error {
	if strings.TrimSpace(namespace) == "" {
		return ErrEmptyNamespace
	}
	a.Namespace = namespace
	return nil
}

// IsAbsent reports whether no signing field is set.
func (s SigningDescriptor) IsAbsent() bool {
	return s.KeyAlias == nil && s.KeyPassword == nil && s.StoreFile == nil && s.StorePassword == nil
}

// IsComplete reports whether every signing field is set.
func (s SigningDescriptor) IsComplete() bool {
	return s.KeyAlias != nil && s.KeyPassword != nil && s.StoreFile != nil && s.StorePassword != nil
}
