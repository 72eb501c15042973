// SPDX-License-Identifier: MPL-2.0

package h5p

type (
	// User is the caller on whose behalf an operation runs. Hosts adapt their
	// own account model to it.
	User interface {
		ID() string
		// CanInstallRecommended allows installing catalog content types
		// marked as recommended.
		CanInstallRecommended() bool
		// CanUpdateAndInstallLibraries allows installing any content type and
		// uploading packages with new libraries.
		CanUpdateAndInstallLibraries() bool
		// CanCreateRestricted allows using restricted content types.
		CanCreateRestricted() bool
	}

	// StaticUser is a User whose permissions are fixed at construction.
	StaticUser struct {
		UserID             string `json:"id"`
		Name               string `json:"name,omitempty"`
		InstallRecommended bool   `json:"canInstallRecommended"`
		UpdateAndInstall   bool   `json:"canUpdateAndInstallLibraries"`
		CreateRestricted   bool   `json:"canCreateRestricted"`
	}
)

// ID implements User.
func (u *StaticUser) ID() string { return u.UserID }

// CanInstallRecommended implements User.
func (u *StaticUser) CanInstallRecommended() bool { return u.InstallRecommended }

// CanUpdateAndInstallLibraries implements User.
func (u *StaticUser) CanUpdateAndInstallLibraries() bool { return u.UpdateAndInstall }

// CanCreateRestricted implements User.
func (u *StaticUser) CanCreateRestricted() bool { return u.CreateRestricted }

// AdminUser returns a StaticUser holding every permission.
func AdminUser(id string) *StaticUser {
	return &StaticUser{UserID: id, InstallRecommended: true, UpdateAndInstall: true, CreateRestricted: true}
}
