package normalize

import (
	"sort"

	"github.com/goliatone/go-profilesync/pkg/types"
)

// Kind describes how a field is validated.
type Kind int

const (
	// KindCollection is a sequence of records merged by id.
	KindCollection Kind = iota
	// KindTokenList is an ordered sequence of string tokens.
	KindTokenList
	// KindObjectList is an ordered sequence of object descriptors.
	KindObjectList
	// KindMap is an object whose defaults are shallow-merged under the input.
	KindMap
	// KindNullableMap is an object or null, never defaulted to an object.
	KindNullableMap
	// KindScalar is validated by the field's Accept predicate.
	KindScalar
	// KindDerived is computed from the caller, never read from the input.
	KindDerived
)

// Accept validates a scalar and returns its canonical form.
type Accept func(value any) (any, bool)

// Field is one row of the validator table.
type Field struct {
	Name    string
	Kind    Kind
	Accept  Accept
	Default any
}

// Field names outside the record collections.
const (
	FieldOperativeCardOrder   = "operativeCardOrder"
	FieldEconomicCardOrder    = "economicCardOrder"
	FieldDashboardLayout      = "dashboardLayout"
	FieldShiftOverrides       = "shiftOverrides"
	FieldShiftDefinitions     = "shiftDefinitions"
	FieldCalendarFilters      = "calendarFilters"
	FieldCollapsedCards       = "collapsedCards"
	FieldSalarySettings       = "salarySettings"
	FieldNetSalary            = "netSalary"
	FieldWorkLocation         = "workLocation"
	FieldView                 = "view"
	FieldReminderDays         = "reminderDays"
	FieldTheme                = "theme"
	FieldLanguage             = "language"
	FieldNotificationsEnabled = "notificationsEnabled"
	FieldOnCallFilterName     = "onCallFilterName"
)

// Views accepted by the view setting.
var Views = []string{"dashboard", "calendar", "list", "stats", "settings"}

// Themes accepted by the theme setting.
var Themes = []string{"light", "dark", "system"}

func builtinFields() []Field {
	fields := make([]Field, 0, len(types.Collections)+16)
	for _, name := range types.Collections {
		fields = append(fields, Field{Name: name, Kind: KindCollection, Default: []any{}})
	}
	fields = append(fields,
		Field{
			Name: FieldOperativeCardOrder,
			Kind: KindTokenList,
			Default: []any{
				types.CollectionHolidays,
				types.CollectionPermits,
				types.CollectionOvertime,
				types.CollectionOnCall,
				types.CollectionAppointments,
				types.CollectionCheckIns,
			},
		},
		Field{
			Name: FieldEconomicCardOrder,
			Kind: KindTokenList,
			Default: []any{
				types.CollectionOvertime,
				types.CollectionOnCall,
				types.CollectionProjects,
			},
		},
		Field{
			Name: FieldDashboardLayout,
			Kind: KindObjectList,
			Default: []any{
				map[string]any{"id": "summary", "visible": true},
				map[string]any{"id": "calendar", "visible": true},
				map[string]any{"id": "upcoming", "visible": true},
			},
		},
		Field{Name: FieldShiftOverrides, Kind: KindMap, Default: map[string]any{}},
		Field{
			Name: FieldShiftDefinitions,
			Kind: KindMap,
			Default: map[string]any{
				"morning":   map[string]any{"start": "07:00", "end": "15:00"},
				"afternoon": map[string]any{"start": "15:00", "end": "23:00"},
				"night":     map[string]any{"start": "23:00", "end": "07:00"},
			},
		},
		Field{
			Name: FieldCalendarFilters,
			Kind: KindMap,
			Default: map[string]any{
				types.CollectionHolidays:     true,
				types.CollectionPermits:      true,
				types.CollectionOvertime:     true,
				types.CollectionOnCall:       true,
				types.CollectionAppointments: true,
				types.CollectionCheckIns:     true,
			},
		},
		Field{Name: FieldCollapsedCards, Kind: KindMap, Default: map[string]any{}},
		Field{
			Name: FieldSalarySettings,
			Kind: KindMap,
			Default: map[string]any{
				"baseSalary":   float64(0),
				"overtimeRate": float64(0),
				"onCallRate":   float64(0),
				"currency":     "EUR",
			},
		},
		Field{
			Name: FieldNetSalary,
			Kind: KindMap,
			Default: map[string]any{
				"incomeTaxRate":      float64(0),
				"socialSecurityRate": float64(0),
			},
		},
		Field{Name: FieldWorkLocation, Kind: KindNullableMap, Default: nil},
		Field{Name: FieldView, Kind: KindScalar, Accept: oneOf(Views...), Default: "dashboard"},
		Field{Name: FieldReminderDays, Kind: KindScalar, Accept: finiteNumber, Default: float64(7)},
		Field{Name: FieldTheme, Kind: KindScalar, Accept: oneOf(Themes...), Default: "system"},
		Field{Name: FieldLanguage, Kind: KindScalar, Accept: nonEmptyString, Default: "en"},
		Field{Name: FieldNotificationsEnabled, Kind: KindScalar, Accept: boolean, Default: true},
		Field{Name: FieldOnCallFilterName, Kind: KindDerived, Default: ""},
	)
	return fields
}

// Schema is the validator table applied by the normalizer.
type Schema struct {
	fields []Field
	index  map[string]int
}

func newSchema(fields []Field) *Schema {
	s := &Schema{
		fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, field := range fields {
		s.index[field.Name] = i
	}
	return s
}

// Fields returns a copy of the table rows.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks up a single row.
func (s *Schema) Field(name string) (Field, bool) {
	idx, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[idx], true
}

// Names returns every field name sorted alphabetically.
func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.fields))
	for _, field := range s.fields {
		names = append(names, field.Name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns the default value of every field except the derived ones.
func (s *Schema) Defaults() map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, field := range s.fields {
		if field.Kind == KindDerived {
			continue
		}
		out[field.Name] = cloneValue(field.Default)
	}
	return out
}
