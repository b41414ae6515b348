package config

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxInstanceNamePrefixLength bounds the prefix so generated names stay
// within the control plane's name limit.
const MaxInstanceNamePrefixLength = 218

// MaxDatabaseNamePrefixLength bounds the prefix of database instance names.
const MaxDatabaseNamePrefixLength = 26

// Database user names and passwords are 1 to 16 characters.
const maxDatabaseCredentialLength = 16

// Severity levels for ValidationError.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

var prefixPattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ValidationError represents a single configuration problem.
type ValidationError struct {
	Field    string // Configuration field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == SeverityError
}

// Validate checks the configuration and returns every error found, joined
// into one message. Warnings are not returned.
func (c *Config) Validate() error {
	var msgs []string
	for _, ve := range c.Check() {
		if ve.IsError() {
			msgs = append(msgs, ve.Error())
		}
	}
	if len(msgs) > 0 {
		return fmt.Errorf("%s", strings.Join(msgs, "\n  "))
	}
	return nil
}

// Check runs every static check and returns errors and warnings in field order.
func (c *Config) Check() []ValidationError {
	var errs []ValidationError

	switch c.Provider {
	case ProviderHCloud:
		if c.HCloud.Token == "" {
			errs = append(errs, errorf("hcloud.token", "token is required (or set HCLOUD_TOKEN)"))
		}
	case ProviderOpenStack, ProviderTrove:
		if c.OpenStack.IdentityEndpoint == "" {
			errs = append(errs, errorf("openstack.identityEndpoint", "identity endpoint is required (or set OS_AUTH_URL)"))
		}
		if c.OpenStack.Username == "" {
			errs = append(errs, errorf("openstack.username", "username is required (or set OS_USERNAME)"))
		}
	default:
		errs = append(errs, errorf("provider", fmt.Sprintf("unknown provider %q: must be %q, %q or %q",
			c.Provider, ProviderOpenStack, ProviderHCloud, ProviderTrove)))
	}

	switch {
	case c.Provider == ProviderTrove && !c.Template.IsDatabase():
		errs = append(errs, errorf("template.database", "database settings are required for the trove provider"))
	case c.Provider != ProviderTrove && c.Template.IsDatabase():
		errs = append(errs, errorf("template.database", "database templates need the trove provider"))
	}

	return append(errs, c.Template.Check()...)
}

// Check validates the template fields that need no control plane access.
func (t Template) Check() []ValidationError {
	if t.IsDatabase() {
		return t.checkDatabase()
	}

	var errs []ValidationError

	if t.Image == "" {
		errs = append(errs, errorf("template.image", "image is required"))
	}
	if t.Flavor == "" {
		errs = append(errs, errorf("template.flavor", "flavor is required"))
	}
	if t.Network == "" {
		errs = append(errs, errorf("template.network", "network is required"))
	}

	errs = append(errs, checkPrefix(t.InstanceNamePrefix)...)

	if t.VolumeNumber < 0 {
		errs = append(errs, errorf("template.volumeNumber", "invalid volume number: must be >= 0"))
	}
	if t.VolumeNumber > 0 && t.VolumeSize < 1 {
		errs = append(errs, errorf("template.volumeSize", "invalid volume size: must be >= 1 GiB"))
	}
	if t.VolumeNumber == 0 && t.VolumeSize > 0 {
		errs = append(errs, ValidationError{
			Field:    "template.volumeSize",
			Message:  "volume size is ignored because volumeNumber is 0",
			Severity: SeverityWarning,
		})
	}

	if t.SecurityGroups != "" && len(t.SecurityGroupNames()) == 0 {
		errs = append(errs, ValidationError{
			Field:    "template.securityGroups",
			Message:  "security group list contains no names",
			Severity: SeverityWarning,
		})
	}

	return errs
}

// checkDatabase validates a database template. Database instances get
// neither volumes nor floating IPs, and boot from the datastore image.
func (t Template) checkDatabase() []ValidationError {
	var errs []ValidationError
	db := t.Database

	if t.Flavor == "" {
		errs = append(errs, errorf("template.flavor", "flavor is required"))
	}
	errs = append(errs, checkPrefixLength(t.InstanceNamePrefix, MaxDatabaseNamePrefixLength)...)

	if db.Datastore == "" {
		errs = append(errs, errorf("template.database.datastore", "datastore is required"))
	}
	if db.Version == "" {
		errs = append(errs, errorf("template.database.version", "datastore version is required"))
	}
	if db.VolumeSize < 1 {
		errs = append(errs, errorf("template.database.volumeSize", "invalid volume size: must be >= 1 GiB"))
	}
	errs = append(errs, checkCredential("template.database.username", "username", db.Username)...)
	errs = append(errs, checkCredential("template.database.password", "password", db.Password)...)

	if t.VolumeNumber != 0 {
		errs = append(errs, errorf("template.volumeNumber", "volumes cannot be attached to database instances"))
	}
	if t.FloatingIPPool != "" {
		errs = append(errs, errorf("template.floatingIpPool", "floating IPs cannot be assigned to database instances"))
	}
	for _, f := range []struct{ field, value string }{
		{"template.image", t.Image},
		{"template.keyName", t.KeyName},
		{"template.securityGroups", t.SecurityGroups},
	} {
		if f.value != "" {
			errs = append(errs, ValidationError{
				Field:    f.field,
				Message:  "ignored for database instances",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

func checkCredential(field, name, value string) []ValidationError {
	if value == "" {
		return []ValidationError{errorf(field, name+" is required")}
	}
	if len(value) > maxDatabaseCredentialLength {
		return []ValidationError{errorf(field,
			fmt.Sprintf("%s must be between 1 and %d characters", name, maxDatabaseCredentialLength))}
	}
	return nil
}

func checkPrefix(prefix string) []ValidationError {
	return checkPrefixLength(prefix, MaxInstanceNamePrefixLength)
}

func checkPrefixLength(prefix string, maxLen int) []ValidationError {
	const field = "template.instanceNamePrefix"
	if prefix == "" {
		return []ValidationError{errorf(field, "instance name prefix must be provided")}
	}
	if len(prefix) > maxLen {
		return []ValidationError{errorf(field,
			fmt.Sprintf("instance name prefix must be between 1 and %d characters", maxLen))}
	}
	if !prefixPattern.MatchString(prefix) {
		return []ValidationError{errorf(field,
			"instance name prefix must start with a lowercase letter and contain only lowercase letters, digits and dashes")}
	}
	return nil
}

func errorf(field, msg string) ValidationError {
	return ValidationError{Field: field, Message: msg, Severity: SeverityError}
}
