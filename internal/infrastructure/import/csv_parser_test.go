package csvimport

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCSVParser(t *testing.T) {
	t.Run("UTF-8 BOM is stripped", func(t *testing.T) {
		p, err := NewCSVParser(strings.NewReader("\xEF\xBB\xBFnumber,quantity\n100,20"))
		require.NoError(t, err)
		require.NoError(t, p.ParseHeader())
		assert.Equal(t, []string{"number", "quantity"}, p.Headers())
	})

	t.Run("empty file returns error", func(t *testing.T) {
		_, err := NewCSVParser(strings.NewReader("  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("semicolon is detected from the header", func(t *testing.T) {
		p, err := NewCSVParser(strings.NewReader("number;quantity;annex\n100;20;ref. doc 1,2"))
		require.NoError(t, err)
		assert.Equal(t, ';', p.Delimiter())
		require.NoError(t, p.ParseHeader())

		row, err := p.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, "ref. doc 1,2", row.Get("annex"))
	})

	t.Run("explicit delimiter wins", func(t *testing.T) {
		p, err := NewCSVParser(strings.NewReader("a;b,c\n1;2,3"), WithDelimiter(','))
		require.NoError(t, err)
		assert.Equal(t, ',', p.Delimiter())
	})

	t.Run("Windows-1252 exports are decoded", func(t *testing.T) {
		p, err := NewCSVParser(strings.NewReader("number;annex\n1;Devolu\xe7\xe3o de paletes"))
		require.NoError(t, err)
		assert.True(t, p.Legacy())
		require.NoError(t, p.ParseHeader())

		row, err := p.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, "Devolução de paletes", row.Get("annex"))
	})
}

func TestParseHeader(t *testing.T) {
	p, err := NewCSVParser(strings.NewReader("  Number , QUANTITY ,annex\n100,20,x"))
	require.NoError(t, err)
	require.NoError(t, p.ParseHeader())

	assert.Equal(t, []string{"number", "quantity", "annex"}, p.Headers())
	assert.True(t, p.HasHeader("Quantity"))
	assert.Equal(t, []string{"issuer_cnpj"}, p.ValidateHeaders([]string{"number", "issuer_cnpj"}))
}

func TestReadRows(t *testing.T) {
	data := "number,quantity,annex\n100, 20 ,\"retorno, vazio\"\n,,\n101,5\n"
	p, err := ParseFromBytes([]byte(data))
	require.NoError(t, err)
	require.NoError(t, p.ParseHeader())

	rows, err := p.ReadAllRows()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].LineNumber)
	assert.Equal(t, "20", rows[0].Get("quantity"))
	assert.Equal(t, "retorno, vazio", rows[0].Get("annex"))

	assert.Equal(t, 4, rows[1].LineNumber)
	assert.Equal(t, "", rows[1].Get("annex"), "short rows are padded")
	assert.Equal(t, 3, p.TotalRows())

	_, err = p.ReadRow()
	assert.ErrorIs(t, err, io.EOF)
}
