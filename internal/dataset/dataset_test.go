package dataset

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Dataset {
	d := New(
		Column{Name: "name", Kind: Text},
		Column{Name: "price", Kind: Float},
		Column{Name: "count", Kind: Int},
	)
	_ = d.Append("a", 1.5, int64(3))
	_ = d.Append("b", nil, int64(4))
	_ = d.Append("a", 1.5, int64(3))
	_ = d.Append("", 2.0, nil)
	return d
}

func TestDropDuplicatesKeepsFirst(t *testing.T) {
	d := sample()
	removed := d.DropDuplicates()

	assert.Equal(t, 1, removed)
	require.Equal(t, 3, d.Len())
	assert.Equal(t, "a", d.Value(0, "name"))
	assert.Equal(t, "b", d.Value(1, "name"))
	assert.Equal(t, "", d.Value(2, "name"))
}

func TestDropDuplicatesDistinguishesNullFromEmpty(t *testing.T) {
	d := New(Column{Name: "x"}, Column{Name: "y"})
	_ = d.Append(nil, "1")
	_ = d.Append("", "1")

	assert.Equal(t, 0, d.DropDuplicates())
	assert.Equal(t, 2, d.Len())
}

func TestDropColumns(t *testing.T) {
	d := sample()
	d.DropColumns("price", "missing")

	assert.Equal(t, []string{"name", "count"}, d.ColumnNames())
	assert.Equal(t, []interface{}{"b", int64(4)}, d.Rows[1])
}

func TestMapAndFill(t *testing.T) {
	d := sample()
	require.NoError(t, d.FillNull("price", 0.0))
	require.NoError(t, d.Map("count", Float, func(v interface{}) interface{} {
		if v == nil {
			return nil
		}
		return float64(v.(int64)) * 2
	}))

	assert.Equal(t, 0.0, d.Value(1, "price"))
	assert.Equal(t, 8.0, d.Value(1, "count"))
	assert.Nil(t, d.Value(3, "count"))
	assert.Equal(t, Float, d.Columns[2].Kind)

	err := d.Map("nope", Text, func(v interface{}) interface{} { return v })
	assert.ErrorIs(t, err, ErrColumnNotFound)
}

func TestInsertColumn(t *testing.T) {
	d := sample()
	require.NoError(t, d.InsertColumn(0, Column{Name: "id", Kind: Int}, func(i int) interface{} { return int64(i) }))

	assert.Equal(t, []string{"id", "name", "price", "count"}, d.ColumnNames())
	assert.Equal(t, int64(2), d.Value(2, "id"))
	assert.Error(t, d.InsertColumn(0, Column{Name: "id"}, func(int) interface{} { return nil }))
}

func TestValueCountsOrderedByFirstAppearance(t *testing.T) {
	d := New(Column{Name: "c"})
	for _, v := range []interface{}{"NEW", "USED", nil, "NEW", "REFURB", "NEW"} {
		_ = d.Append(v)
	}

	counts, err := d.ValueCounts("c")
	require.NoError(t, err)
	assert.Equal(t, []ValueCount{
		{Value: "NEW", Count: 3},
		{Value: "USED", Count: 1},
		{Value: "REFURB", Count: 1},
	}, counts)
}

func TestArtifactRoundTrip(t *testing.T) {
	d := sample()
	_ = d.Append("quote \"x\", comma", 1e-7, int64(-9))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))
	assert.True(t, strings.HasPrefix(buf.String(), "name,price::float,count::int\n"))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, d.Columns, got.Columns)
	assert.Equal(t, d.Rows, got.Rows)
}

func TestArtifactRoundTripAmbiguousTextHeader(t *testing.T) {
	d := New(Column{Name: "odd::int", Kind: Text})
	_ = d.Append("x")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))
	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, d.Columns, got.Columns)
}

func TestArtifactRoundTripMarkerLikeText(t *testing.T) {
	d := New(Column{Name: "note", Kind: Text}, Column{Name: "n", Kind: Int})
	_ = d.Append(`\N`, nil)
	_ = d.Append(`\\N`, int64(1))
	_ = d.Append(nil, int64(2))
	_ = d.Append("N", int64(3))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))
	assert.Contains(t, buf.String(), "\\\\N,\\N\n")

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, d.Rows, got.Rows)
}

func TestReadRejectsBadTypedCell(t *testing.T) {
	_, err := Read(strings.NewReader("n::int\nabc\n"))
	assert.Error(t, err)
}

func TestReadRawInfersKindsAndNulls(t *testing.T) {
	in := "\"Unnamed: 0\",ratings,price,weight,note\n" +
		"0,\"4,5\",10,1 lb,\n" +
		"1,3,12.5,,x\n"

	d, err := ReadRaw(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{Name: "Unnamed: 0", Kind: Int},
		{Name: "ratings", Kind: Text},
		{Name: "price", Kind: Float},
		{Name: "weight", Kind: Text},
		{Name: "note", Kind: Text},
	}, d.Columns)
	assert.Equal(t, int64(1), d.Value(1, "Unnamed: 0"))
	assert.Equal(t, "4,5", d.Value(0, "ratings"))
	assert.Equal(t, "3", d.Value(1, "ratings"))
	assert.Equal(t, 10.0, d.Value(0, "price"))
	assert.Nil(t, d.Value(1, "weight"))
	assert.Nil(t, d.Value(0, "note"))
}

func TestReadRawNamesBlankHeaders(t *testing.T) {
	d, err := ReadRaw(strings.NewReader(",a\n1,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Unnamed: 0", "a"}, d.ColumnNames())
}
