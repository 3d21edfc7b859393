package snap

import (
	"context"
)

func checkManifest(_ context.Context, r *run) error {
	m, err := r.opts.schema.ValidateManifest(r.in.Manifest.Value)
	if err != nil {
		return schemaError(StageManifest, err)
	}
	r.manifest = m

	// A declared icon must ship with the package; an undeclared one is
	// handled by the cross-reference stage.
	if iconPath := m.Source.Location.NPM.IconPath; iconPath != "" && r.in.SVGIcon == nil {
		return missingFile(StageManifest, iconPath)
	}
	return nil
}

func checkPackageJSON(_ context.Context, r *run) error {
	p, err := r.opts.schema.ValidatePackageJSON(r.in.PackageJSON.Value)
	if err != nil {
		return schemaError(StagePackageJSON, err)
	}
	r.packageJSON = p
	return nil
}

func schemaError(stage Stage, err error) *Error {
	return &Error{
		Kind:  ErrSchemaValidation,
		Stage: stage,
		Msg:   err.Error(),
		Err:   err,
	}
}
