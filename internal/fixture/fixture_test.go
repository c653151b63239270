package fixture

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

const customerXML = `<?xml version="1.0" encoding="UTF-8"?>
<dataset>
  <CUSTOMER ID="1" NAME="Ada"/>
  <CUSTOMER ID="2" NAME="Grace" EMAIL="grace@example.com"/>
  <ORDERS>
    <ID>10</ID>
    <CUSTOMER_ID>1</CUSTOMER_ID>
    <NOTE></NOTE>
  </ORDERS>
  <ORDERS>
    <ID>11</ID>
    <CUSTOMER_ID>2</CUSTOMER_ID>
    <NOTE null="true"/>
  </ORDERS>
  <app.AUDIT/>
</dataset>`

func TestLoadXML_TablesInDocumentOrder(t *testing.T) {
	doc, err := LoadXML(strings.NewReader(customerXML), "customers.xml")
	require.NoError(t, err)

	require.Len(t, doc.Tables, 3)
	assert.Equal(t, "CUSTOMER", doc.Tables[0].Name)
	assert.Equal(t, "ORDERS", doc.Tables[1].Name)
	assert.Equal(t, "app.AUDIT", doc.Tables[2].Name)
}

func TestLoadXML_ColumnSensingAndNulls(t *testing.T) {
	doc, err := LoadXML(strings.NewReader(customerXML), "customers.xml")
	require.NoError(t, err)

	customer, ok := doc.Table("customer")
	require.True(t, ok)
	assert.Equal(t, []string{"ID", "NAME", "EMAIL"}, customer.ColumnNames())
	assert.Equal(t, Row{"1", "Ada", nil}, customer.Rows[0])
	assert.Equal(t, Row{"2", "Grace", "grace@example.com"}, customer.Rows[1])

	orders, ok := doc.Table("ORDERS")
	require.True(t, ok)
	note, err := orders.Value(0, "note")
	require.NoError(t, err)
	assert.Equal(t, "", note, "an empty element is the empty string")
	note, err = orders.Value(1, "Note")
	require.NoError(t, err)
	assert.Nil(t, note)

	audit, ok := doc.Table("APP.audit")
	require.True(t, ok)
	assert.Empty(t, audit.Rows, "a bare element only declares the table")
	assert.NoError(t, doc.Tables[0].Validate())
}

func TestLoadXML_Malformed(t *testing.T) {
	tests := map[string]string{
		"empty":         "",
		"unclosed":      "<dataset><T a='1'>",
		"nested column": "<dataset><T><a><b/></a></T></dataset>",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadXML(strings.NewReader(src), "bad.xml")
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestLoad_PicksFormatByExtension(t *testing.T) {
	yamlDoc := "T:\n  - id: 1\n"
	doc, err := Load(strings.NewReader(yamlDoc), "set.YML")
	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, int64(1), doc.Tables[0].Rows[0][0])

	doc, err = Load(strings.NewReader(`<dataset><T id="1"/></dataset>`), "set.xml")
	require.NoError(t, err)
	assert.Equal(t, "1", doc.Tables[0].Rows[0][0])
}

func TestLoadYAML_TypedValuesInOrder(t *testing.T) {
	src := `
zeta:
  - id: 1
    name: first
    score: 1.5
    active: true
  - id: 2
    name: ~
alpha: []
empty:
`
	doc, err := LoadYAML(strings.NewReader(src), "set.yaml")
	require.NoError(t, err)

	require.Len(t, doc.Tables, 3)
	assert.Equal(t, "zeta", doc.Tables[0].Name)
	assert.Equal(t, "alpha", doc.Tables[1].Name)

	zeta := doc.Tables[0]
	assert.Equal(t, []Column{
		{Name: "id", Type: TypeInteger},
		{Name: "name", Type: TypeString},
		{Name: "score", Type: TypeFloat},
		{Name: "active", Type: TypeBoolean},
	}, zeta.Columns)
	assert.Equal(t, Row{int64(1), "first", 1.5, true}, zeta.Rows[0])
	assert.Equal(t, Row{int64(2), nil, nil, nil}, zeta.Rows[1])
	assert.Empty(t, doc.Tables[2].Rows)
}

func TestLoadYAML_RejectsNonTables(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("- 1\n- 2\n"), "list.yaml")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = LoadYAML(strings.NewReader("T:\n  - [1, 2]\n"), "rows.yaml")
	assert.ErrorIs(t, err, ErrMalformed)

	doc, err := LoadYAML(strings.NewReader(""), "empty.yaml")
	require.NoError(t, err)
	assert.Empty(t, doc.Tables)
}

func TestTable_AddRowChecksArity(t *testing.T) {
	tbl := NewTable("T", Column{Name: "id"}, Column{Name: "text"})
	require.NoError(t, tbl.AddRow(1, "a"))
	err := tbl.AddRow(2)
	assert.ErrorIs(t, err, ErrArity)
	assert.Len(t, tbl.Rows, 1)
}

func TestCompose_ConcatenatesWithoutMerging(t *testing.T) {
	first := &Document{Name: "a.xml", Tables: []*Table{NewTable("T"), NewTable("U")}}
	second := &Document{Name: "b.xml", Tables: []*Table{NewTable("t"), NewTable("V")}}

	s := Compose(first, nil, second)
	names := make([]string, 0, 4)
	for _, tbl := range s.Tables() {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"T", "U", "t", "V"}, names)
	assert.Equal(t, []string{"T", "U", "V"}, s.TableNames())
	assert.Equal(t, "a.xml+b.xml", s.Name())
	assert.Nil(t, (*Store)(nil).Tables())
}

func TestFindDuplicates(t *testing.T) {
	tbl := NewTable("T", Column{Name: "ID"}, Column{Name: "TEXT"})
	require.NoError(t, tbl.AddRow(100, "a"))
	require.NoError(t, tbl.AddRow(222, "b"))
	require.NoError(t, tbl.AddRow(100, "c"))
	require.NoError(t, tbl.AddRow(100, "d"))

	assert.Equal(t, []string{"100"}, FindDuplicates(tbl, []string{"id"}))

	none := FindDuplicates(tbl, nil)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestFindDuplicates_CompositeKeyAndNulls(t *testing.T) {
	tbl := NewTable("T", Column{Name: "a"}, Column{Name: "b"})
	require.NoError(t, tbl.AddRow(1, nil))
	require.NoError(t, tbl.AddRow(1, "x"))
	require.NoError(t, tbl.AddRow(1, nil))

	assert.Equal(t, []string{"1|null"}, FindDuplicates(tbl, []string{"a", "b"}))
}

func goldenTables(t *testing.T) []*Table {
	tbl := NewTable("T", Column{Name: "id"}, Column{Name: "text"})
	require.NoError(t, tbl.AddRow(100, "a"))
	require.NoError(t, tbl.AddRow(222, nil))
	require.NoError(t, tbl.AddRow(100, "c"))
	return []*Table{tbl, NewTable("EMPTY")}
}

func TestDescribeWithKeys_Golden(t *testing.T) {
	keys := func(table string) []string {
		if SameName(table, "t") {
			return []string{"id"}
		}
		return nil
	}
	out := DescribeWithKeys(goldenTables(t), keys)
	newGolden(t).Assert(t, "describe_duplicates", []byte(out))
}

func TestDescribe_NoTables(t *testing.T) {
	assert.Equal(t, "tables(row count): none\n", Describe(nil))
}

func TestWriteXML_Golden(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXML(&buf, goldenTables(t)))
	newGolden(t).Assert(t, "dump_xml", buf.Bytes())
}

func TestWriteXML_ReadsBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXML(&buf, goldenTables(t)))

	doc, err := LoadXML(&buf, "dump.xml")
	require.NoError(t, err)
	require.Len(t, doc.Tables, 2)
	assert.Equal(t, Row{"222", nil}, doc.Tables[0].Rows[1])
	assert.Empty(t, doc.Tables[1].Rows)
}

func TestFold(t *testing.T) {
	assert.True(t, SameName("ΟΔΟΣ", "οδος"))
	assert.True(t, SameName("customer_id", "CUSTOMER_ID"))

	schema, table := SplitQualified("app.audit")
	assert.Equal(t, "app", schema)
	assert.Equal(t, "audit", table)
	schema, table = SplitQualified("audit")
	assert.Empty(t, schema)
	assert.Equal(t, "audit", table)
}
