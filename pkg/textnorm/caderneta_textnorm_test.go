package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "salario", Fold("Salário"))
	assert.Equal(t, "transferencia", Fold("TRANSFERÊNCIA"))
	assert.Equal(t, "cartao de credito", Fold("Cartão de Crédito"))
}

func TestUpperKeepsAccents(t *testing.T) {
	assert.Equal(t, "SALÁRIO", Upper("salário"))
}

func TestTokenizeKeepsAmountsAndDates(t *testing.T) {
	got := Tokenize("paguei 1.000,50 em 20/03, ok!")
	assert.Equal(t, []string{"paguei", "1.000,50", "em", "20/03", "ok"}, got)
}

func TestNormalize(t *testing.T) {
	got := Normalize("Paguei 150 no mercado com pix")
	assert.Equal(t, []string{"pag", NumberToken, "merc", "pix"}, got)
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("10.500,75"))
	assert.True(t, IsNumeric("r$150"))
	assert.False(t, IsNumeric("r$"))
	assert.False(t, IsNumeric("pix"))
}

func TestLemmatize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"paguei", "pag"},
		{"comprando", "compr"},
		{"vendemos", "vend"},
		{"contas", "conta"},
		{"gas", "gas"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Lemmatize(tt.in), tt.in)
	}
}
