// Package referentiel declares the administrative reference collections
// (communes, EPCIs, départements, régions, pays) and keeps the current,
// fully built set of them.
package referentiel

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/collection"
	apperrors "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/errors"
)

// Kind names a reference collection.
type Kind string

const (
	Communes                   Kind = "communes"
	CommunesAssocieesDeleguees Kind = "communes_associees_deleguees"
	EPCIs                      Kind = "epcis"
	Departements               Kind = "departements"
	Regions                    Kind = "regions"
	Pays                       Kind = "pays"
)

// Kinds lists every collection in load order.
var Kinds = []Kind{Communes, CommunesAssocieesDeleguees, EPCIs, Departements, Regions, Pays}

// Abbreviations expanded in multi-word commune name searches.
var Abbreviations = map[string]string{
	"st":   "saint",
	"ste":  "sainte",
	"cgne": "campagne",
}

var populationBoost = map[string]collection.BoostFunc{
	"population": collection.PopulationBoost,
}

// Definition gathers everything needed to build and serve one kind.
type Definition struct {
	Kind         Kind
	Schema       collection.Schema
	DefaultQuery collection.Query
	Fields       FieldOptions
	Format       FormatOptions
	// Params are the query string parameters copied into a search.
	Params []string
	// ListParams are split on commas.
	ListParams []string
	// PointQuery is the query key fed with lat/lon, if any.
	PointQuery string
}

// FieldOptions lists the fields returned by default and those always
// returned.
type FieldOptions struct {
	Default []string
	Base    []string
}

func (o FieldOptions) validate() error {
	if len(o.Default) == 0 || len(o.Base) == 0 {
		return fmt.Errorf("%w: default and base fields are required", apperrors.ErrInvalidSchema)
	}
	return nil
}

// FormatOptions lists the geometry fields a kind can be rendered with as
// GeoJSON. A kind without geometries only renders as JSON.
type FormatOptions struct {
	Geometries      []string
	DefaultGeometry string
}

func (o FormatOptions) validate() error {
	if len(o.Geometries) == 0 {
		if o.DefaultGeometry != "" {
			return fmt.Errorf("%w: default geometry without geometries", apperrors.ErrInvalidSchema)
		}
		return nil
	}
	if o.DefaultGeometry == "" {
		return fmt.Errorf("%w: default geometry is required", apperrors.ErrInvalidSchema)
	}
	for _, g := range o.Geometries {
		if g == o.DefaultGeometry {
			return nil
		}
	}
	return fmt.Errorf("%w: default geometry %q is not in the geometry list", apperrors.ErrInvalidSchema, o.DefaultGeometry)
}

// AllowsGeoJSON reports whether the kind can be rendered as GeoJSON.
func (o FormatOptions) AllowsGeoJSON() bool {
	return len(o.Geometries) > 0
}

// Validate checks the options of d.
func (d Definition) Validate() error {
	if err := d.Schema.Validate(); err != nil {
		return fmt.Errorf("%s: %w", d.Kind, err)
	}
	if err := d.Fields.validate(); err != nil {
		return fmt.Errorf("%s: %w", d.Kind, err)
	}
	if err := d.Format.validate(); err != nil {
		return fmt.Errorf("%s: %w", d.Kind, err)
	}
	return nil
}

// Definitions returns the definition of every kind.
func Definitions() map[Kind]Definition {
	return map[Kind]Definition{
		Communes: {
			Kind: Communes,
			Schema: collection.Schema{
				{Field: "nom", Type: collection.TypeText, Ref: "code", Boosts: populationBoost, Abbreviations: Abbreviations},
				{Field: "type", Type: collection.TypeToken, Multiple: collection.MultipleOR},
				{Field: "code", Type: collection.TypeToken},
				{Field: "siren", Type: collection.TypeToken},
				{Field: "codesPostaux", Type: collection.TypeTokenList, QueryWith: "codePostal"},
				{Field: "codeEpci", Type: collection.TypeToken},
				{Field: "codeDepartement", Type: collection.TypeToken},
				{Field: "codeRegion", Type: collection.TypeToken},
				{Field: "zone", Type: collection.TypeToken, Multiple: collection.MultipleOR},
				{Field: "contour", Type: collection.TypeGeo, QueryWith: "pointInContour"},
			},
			DefaultQuery: collection.Query{"type": []string{"commune-actuelle"}},
			Fields: FieldOptions{
				Default: []string{"nom", "code", "codeDepartement", "codeRegion", "codesPostaux", "population"},
				Base:    []string{"nom", "code"},
			},
			Format:     FormatOptions{Geometries: []string{"centre", "contour", "bbox", "mairie"}, DefaultGeometry: "centre"},
			Params:     []string{"type", "code", "codePostal", "nom", "siren", "codeEpci", "codeDepartement", "codeRegion", "boost", "zone"},
			ListParams: []string{"type", "zone"},
			PointQuery: "pointInContour",
		},
		CommunesAssocieesDeleguees: {
			Kind: CommunesAssocieesDeleguees,
			Schema: collection.Schema{
				{Field: "nom", Type: collection.TypeText, Ref: "code"},
				{Field: "type", Type: collection.TypeToken, Multiple: collection.MultipleOR},
				{Field: "chefLieu", Type: collection.TypeToken},
				{Field: "code", Type: collection.TypeToken},
				{Field: "codeEpci", Type: collection.TypeToken},
				{Field: "codeDepartement", Type: collection.TypeToken},
				{Field: "codeRegion", Type: collection.TypeToken},
				{Field: "contour", Type: collection.TypeGeo, QueryWith: "pointInContour"},
			},
			DefaultQuery: collection.Query{"type": []string{"commune-associee", "commune-deleguee"}},
			Fields: FieldOptions{
				Default: []string{"nom", "code", "chefLieu", "codeDepartement", "codeEpci", "codeRegion", "codesPostaux"},
				Base:    []string{"nom", "code"},
			},
			Format:     FormatOptions{Geometries: []string{"centre", "contour", "bbox"}, DefaultGeometry: "centre"},
			Params:     []string{"type", "code", "nom", "chefLieu", "codeEpci", "codeDepartement", "codeRegion"},
			ListParams: []string{"type"},
			PointQuery: "pointInContour",
		},
		EPCIs: {
			Kind: EPCIs,
			Schema: collection.Schema{
				{Field: "nom", Type: collection.TypeText, Ref: "code", Boosts: populationBoost},
				{Field: "code", Type: collection.TypeToken},
				{Field: "codesDepartements", Type: collection.TypeTokenList, QueryWith: "codeDepartement"},
				{Field: "codesRegions", Type: collection.TypeTokenList, QueryWith: "codeRegion"},
				{Field: "zone", Type: collection.TypeToken, Multiple: collection.MultipleOR},
			},
			DefaultQuery: collection.Query{"zone": []string{"metro", "drom"}},
			Fields: FieldOptions{
				Default: []string{"nom", "code", "codesDepartements", "codesRegions", "population"},
				Base:    []string{"nom", "code"},
			},
			Format:     FormatOptions{Geometries: []string{"centre", "contour", "bbox"}, DefaultGeometry: "centre"},
			Params:     []string{"code", "nom", "codeDepartement", "codeRegion", "boost", "zone"},
			ListParams: []string{"zone"},
		},
		Departements: {
			Kind: Departements,
			Schema: collection.Schema{
				{Field: "nom", Type: collection.TypeText, Ref: "code"},
				{Field: "code", Type: collection.TypeToken},
				{Field: "codeRegion", Type: collection.TypeToken},
				{Field: "zone", Type: collection.TypeToken, Multiple: collection.MultipleOR},
			},
			Fields: FieldOptions{
				Default: []string{"nom", "code", "codeRegion"},
				Base:    []string{"nom", "code"},
			},
			Params:     []string{"code", "nom", "codeRegion", "zone"},
			ListParams: []string{"zone"},
		},
		Regions: {
			Kind: Regions,
			Schema: collection.Schema{
				{Field: "nom", Type: collection.TypeText, Ref: "code"},
				{Field: "code", Type: collection.TypeToken},
				{Field: "zone", Type: collection.TypeToken, Multiple: collection.MultipleOR},
			},
			Fields: FieldOptions{
				Default: []string{"nom", "code"},
				Base:    []string{"nom", "code"},
			},
			Params:     []string{"code", "nom", "zone"},
			ListParams: []string{"zone"},
		},
		Pays: {
			Kind: Pays,
			Schema: collection.Schema{
				{Field: "nom", Type: collection.TypeText, Ref: "code"},
				{Field: "code", Type: collection.TypeToken},
			},
			Fields: FieldOptions{
				Default: []string{"nom", "code", "iso2", "iso3", "num", "territories"},
				Base:    []string{"nom", "code"},
			},
			Params: []string{"code", "nom"},
		},
	}
}

// Build creates and loads the collection of d.
func (d Definition) Build(records []collection.Record) (*collection.Collection, error) {
	c, err := collection.New(d.Schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", d.Kind, err)
	}
	c.Load(records)
	return c, nil
}
