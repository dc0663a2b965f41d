package land

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() Fields {
	return Fields{
		Area:   "1200",
		Survey: "SRV99",
		State:  "MH",
		Price:  "500000",
		PID:    "PAN123",
		City:   "Pune",
	}
}

func TestFieldsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Fields)
		missing []string
	}{
		{name: "all present", mutate: func(*Fields) {}},
		{name: "area missing", mutate: func(f *Fields) { f.Area = "" }, missing: []string{FieldArea}},
		{name: "blank state", mutate: func(f *Fields) { f.State = "   " }, missing: []string{FieldState}},
		{
			name:    "price and pid missing",
			mutate:  func(f *Fields) { f.Price = ""; f.PID = "" },
			missing: []string{FieldPrice, FieldPID},
		},
		{
			name:    "empty form",
			mutate:  func(f *Fields) { *f = Fields{} },
			missing: []string{FieldArea, FieldSurvey, FieldState, FieldPrice, FieldPID, FieldCity},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)

			err := f.Validate()
			if len(tt.missing) == 0 {
				assert.NoError(t, err)
				assert.True(t, f.Valid())
				return
			}

			require.Error(t, err)
			assert.False(t, f.Valid())
			assert.True(t, errors.Is(err, ErrInvalidForm))

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Len(t, verrs, len(tt.missing))
			for _, name := range tt.missing {
				assert.NotEmpty(t, verrs[name], "expected message for %s", name)
			}
		})
	}
}

func TestFieldsSetTrims(t *testing.T) {
	var f Fields
	require.NoError(t, f.Set(FieldCity, "  Pune "))
	assert.Equal(t, "Pune", f.Get(FieldCity))

	err := f.Set("owner", "x")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestRecordArgsOrder(t *testing.T) {
	rec := NewRecord(validFields(), "Qm123", "Qm456")
	assert.Equal(t,
		[]string{"1200", "Pune", "MH", "500000", "PAN123", "SRV99", "Qm123", "Qm456"},
		rec.Args())

	back, ok := RecordFromArgs(rec.Args())
	require.True(t, ok)
	assert.Equal(t, rec, back)
}

func TestRecordFingerprint(t *testing.T) {
	a := NewRecord(validFields(), "Qm123", "Qm456")
	b := NewRecord(validFields(), "Qm123", "Qm456")
	c := NewRecord(validFields(), "Qm456", "Qm123")

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}
