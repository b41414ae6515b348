package allocation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/imamik/fleetalloc/internal/cloud"
	"github.com/imamik/fleetalloc/internal/config"
)

// Validate checks the template's references against the control plane:
// availability zone, image, key pair, security groups and floating IP pool.
// Static checks from config.Template.Check are included first.
func (o *Orchestrator) Validate(ctx context.Context, insp cloud.Inspector, tmpl config.Template) []config.ValidationError {
	errs := tmpl.Check()

	check := func(field string, ok bool, err error, msg string) {
		switch {
		case err != nil:
			errs = append(errs, config.ValidationError{
				Field:    field,
				Message:  fmt.Sprintf("could not be checked: %v", err),
				Severity: config.SeverityError,
			})
		case !ok:
			errs = append(errs, config.ValidationError{Field: field, Message: msg, Severity: config.SeverityError})
		}
	}

	if tmpl.AvailabilityZone != "" {
		ok, err := insp.ZoneExists(ctx, tmpl.AvailabilityZone)
		check("template.availabilityZone", ok, err, fmt.Sprintf("invalid availability zone: %s", tmpl.AvailabilityZone))
	}
	if tmpl.IsDatabase() {
		dbi, ok := insp.(cloud.DatabaseInspector)
		if !ok {
			return append(errs, config.ValidationError{
				Field:    "template.database",
				Message:  "the control plane does not provision database instances",
				Severity: config.SeverityError,
			})
		}
		validateDatabase(ctx, dbi, tmpl, check)
		return errs
	}
	if tmpl.Image != "" {
		ok, err := insp.ImageReady(ctx, tmpl.Image)
		check("template.image", ok, err, fmt.Sprintf("image %s does not exist or is not active", tmpl.Image))
	}
	if tmpl.KeyName != "" {
		ok, err := insp.KeyPairExists(ctx, tmpl.KeyName)
		check("template.keyName", ok, err, fmt.Sprintf("invalid key name: %s", tmpl.KeyName))
	}
	if names := tmpl.SecurityGroupNames(); len(names) > 0 {
		missing, err := insp.MissingSecurityGroups(ctx, names)
		check("template.securityGroups", len(missing) == 0, err,
			fmt.Sprintf("security groups do not exist: %s", strings.Join(missing, ", ")))
	}
	if tmpl.HasFloatingIP() {
		pools, err := o.cp.ListFloatingIPPools(ctx)
		check("template.floatingIpPool", slices.Contains(pools, tmpl.FloatingIPPool), err,
			fmt.Sprintf("floating IP pool %s does not exist", tmpl.FloatingIPPool))
	}

	return errs
}

// validateDatabase checks the flavor and datastore version of a database
// template. Image, key pair and security groups do not apply.
func validateDatabase(ctx context.Context, dbi cloud.DatabaseInspector, tmpl config.Template,
	check func(field string, ok bool, err error, msg string)) {
	if tmpl.Flavor != "" {
		ok, err := dbi.FlavorExists(ctx, tmpl.Flavor)
		check("template.flavor", ok, err, fmt.Sprintf("flavor %s does not exist", tmpl.Flavor))
	}
	if db := tmpl.Database; db.Datastore != "" && db.Version != "" {
		ok, err := dbi.DatastoreVersionExists(ctx, db.Datastore, db.Version)
		check("template.database.version", ok, err,
			fmt.Sprintf("datastore %s has no version %s", db.Datastore, db.Version))
	}
}
