package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pdvlabs/fiscal-api/internal/application/fiscal"
)

// RouterDeps dependências do router.
type RouterDeps struct {
	Emissor   *fiscal.EmissorFiscal
	Notas     fiscal.RepositorioDocumentos // opcional
	JWTSecret string
}

// Router registra as rotas da API fiscal. Tudo exige Bearer Token; as
// operações administrativas da contingência exigem perfil gerente.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	fiscalGroup := api.Group("/fiscal")
	fiscalHandler := NewFiscalHandler(deps.Emissor, deps.Notas)
	fiscalGroup.Post("/notas", fiscalHandler.Emitir)
	fiscalGroup.Get("/notas", fiscalHandler.Listar)
	fiscalGroup.Get("/notas/:chave", fiscalHandler.ConsultarChave)
	fiscalGroup.Post("/notas/cancelamento", fiscalHandler.Cancelar)
	fiscalGroup.Post("/inutilizacao", RequirePerfil("gerente"), fiscalHandler.Inutilizar)
	fiscalGroup.Get("/status", fiscalHandler.StatusServico)
	fiscalGroup.Get("/certificado", fiscalHandler.Certificado)

	contingencia := fiscalGroup.Group("/contingencia")
	contingenciaHandler := NewContingenciaHandler(deps.Emissor.Contingencia())
	contingencia.Get("/", contingenciaHandler.Status)
	contingencia.Get("/operacoes", contingenciaHandler.Operacoes)
	contingencia.Post("/transmitir", contingenciaHandler.Transmitir)
	contingencia.Post("/ativar", RequirePerfil("gerente"), contingenciaHandler.Ativar)
	contingencia.Post("/desativar", RequirePerfil("gerente"), contingenciaHandler.Desativar)
	contingencia.Delete("/operacoes/:chave", RequirePerfil("gerente"), contingenciaHandler.CancelarOperacao)
}
