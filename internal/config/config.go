package config

import "strings"

// Provider names accepted in the provider field.
const (
	ProviderOpenStack = "openstack"
	ProviderHCloud    = "hcloud"
	// ProviderTrove provisions OpenStack database instances with the
	// openstack credentials.
	ProviderTrove = "trove"
)

// DefaultDatastore is the database engine used when the template names none.
const DefaultDatastore = "mysql"

// Config holds the application configuration.
type Config struct {
	Provider  string          `mapstructure:"provider" yaml:"provider"`
	OpenStack OpenStackConfig `mapstructure:"openstack" yaml:"openstack"`
	HCloud    HCloudConfig    `mapstructure:"hcloud" yaml:"hcloud"`
	Template  Template        `mapstructure:"template" yaml:"template"`
}

// OpenStackConfig carries Keystone credentials. Empty secrets fall back
// to the usual OS_* environment variables.
type OpenStackConfig struct {
	IdentityEndpoint string `mapstructure:"identityEndpoint" yaml:"identityEndpoint"`
	Username         string `mapstructure:"username" yaml:"username"`
	Password         string `mapstructure:"password" yaml:"password"`
	DomainName       string `mapstructure:"domainName" yaml:"domainName"`
	TenantName       string `mapstructure:"tenantName" yaml:"tenantName"`
	TenantID         string `mapstructure:"tenantID" yaml:"tenantID"`
	Region           string `mapstructure:"region" yaml:"region"`
}

// HCloudConfig carries the Hetzner Cloud API token. Falls back to HCLOUD_TOKEN.
type HCloudConfig struct {
	Token    string `mapstructure:"token" yaml:"token"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Template is the instance template every allocation request is made against.
type Template struct {
	Name               string            `mapstructure:"name" yaml:"name"`
	Image              string            `mapstructure:"image" yaml:"image"`
	Flavor             string            `mapstructure:"flavor" yaml:"flavor"`
	Network            string            `mapstructure:"network" yaml:"network"`
	AvailabilityZone   string            `mapstructure:"availabilityZone" yaml:"availabilityZone"`
	SecurityGroups     string            `mapstructure:"securityGroups" yaml:"securityGroups"` // comma separated
	KeyName            string            `mapstructure:"keyName" yaml:"keyName"`
	FloatingIPPool     string            `mapstructure:"floatingIpPool" yaml:"floatingIpPool"`
	VolumeNumber       int               `mapstructure:"volumeNumber" yaml:"volumeNumber"`
	VolumeSize         int               `mapstructure:"volumeSize" yaml:"volumeSize"` // GiB
	InstanceNamePrefix string            `mapstructure:"instanceNamePrefix" yaml:"instanceNamePrefix"`
	Tags               map[string]string `mapstructure:"tags" yaml:"tags"`

	// Database turns the template into a database instance template.
	Database *DatabaseTemplate `mapstructure:"database" yaml:"database,omitempty"`
}

// DatabaseTemplate describes a managed database instance.
type DatabaseTemplate struct {
	Datastore  string `mapstructure:"datastore" yaml:"datastore"`
	Version    string `mapstructure:"version" yaml:"version"`
	VolumeSize int    `mapstructure:"volumeSize" yaml:"volumeSize"` // GiB
	Username   string `mapstructure:"username" yaml:"username"`
	Password   string `mapstructure:"password" yaml:"password"`
}

// SecurityGroupNames splits the comma separated security group list,
// trimming whitespace and dropping empty entries.
func (t Template) SecurityGroupNames() []string {
	var names []string
	for _, part := range strings.Split(t.SecurityGroups, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// IsDatabase reports whether the template describes database instances.
func (t Template) IsDatabase() bool {
	return t.Database != nil
}

// HasFloatingIP reports whether instances from this template get a floating IP.
func (t Template) HasFloatingIP() bool {
	return t.FloatingIPPool != ""
}

// VolumesInPlay reports whether instances from this template get volumes.
func (t Template) VolumesInPlay() bool {
	return t.VolumeNumber > 0 && t.VolumeSize > 0
}
