package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdvlabs/fiscal-api/pkg/logger"
)

func TestComponente_FixaCampoNosEventos(t *testing.T) {
	l := logger.New(logger.Config{Env: "production", Level: "debug"})
	sub := l.Componente("contingencia")

	var buf bytes.Buffer
	zl := sub.Zerolog().Output(&buf)
	zl.Info().Str("chave", "abc").Msg("documento enfileirado")

	var evento map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &evento))
	assert.Equal(t, "contingencia", evento["componente"], "o sublogger deve carregar o componente em todo evento")
	assert.Equal(t, "abc", evento["chave"])
	assert.Equal(t, "documento enfileirado", evento["message"])
}

func TestComponente_NaoAfetaOLoggerOriginal(t *testing.T) {
	l := logger.New(logger.Config{Env: "production", Level: "debug"})
	_ = l.Componente("sefaz")

	var buf bytes.Buffer
	zl := l.Zerolog().Output(&buf)
	zl.Info().Msg("sem componente")

	var evento map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &evento))
	_, tem := evento["componente"]
	assert.False(t, tem, "Componente devolve uma cópia, o logger raiz fica intacto")
}

func TestNew_NivelDesconhecidoCaiParaInfo(t *testing.T) {
	l := logger.New(logger.Config{Env: "production", Level: "verboso"})

	var buf bytes.Buffer
	zl := l.Zerolog().Output(&buf)
	zl.Debug().Msg("suprimido")
	assert.Empty(t, buf.Bytes(), "nível desconhecido cai para info e suprime debug")

	zl.Info().Msg("visivel")
	assert.Contains(t, buf.String(), "visivel")
}
