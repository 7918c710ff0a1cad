package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pdvlabs/fiscal-api/internal/application/fiscal"
	"github.com/pdvlabs/fiscal-api/internal/infrastructure/postgres"
	"github.com/pdvlabs/fiscal-api/internal/infrastructure/sefaz"
	"github.com/pdvlabs/fiscal-api/internal/infrastructure/sefaz/signer"
	httpRouter "github.com/pdvlabs/fiscal-api/internal/interfaces/http"
	"github.com/pdvlabs/fiscal-api/pkg/config"
	"github.com/pdvlabs/fiscal-api/pkg/logger"
	"github.com/pdvlabs/fiscal-api/pkg/nfce"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("ambiente_sefaz", cfg.Fiscal.Ambiente).
		Msg("iniciando terminal fiscal")

	if cfg.Fiscal.Emitente.CNPJ != "" {
		if err := nfce.ValidarCNPJ(cfg.Fiscal.Emitente.CNPJ); err != nil {
			log.Fatal().Err(err).Str("cnpj", cfg.Fiscal.Emitente.CNPJ).Msg("FISCAL_CNPJ inválido")
		}
	}

	ctx := context.Background()

	// PostgreSQL é opcional: sem DB o terminal opera com numeração em memória
	// e sem histórico de emissões.
	var (
		notaRepo         fiscal.RepositorioDocumentos
		contingenciaRepo fiscal.RepositorioContingencia
		numeracao        fiscal.SequenciaNumeracao
	)
	if cfg.DB.Habilitado() {
		pool, err := postgres.NovoPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexão com PostgreSQL")
		}
		defer pool.Close()
		notaRepo = postgres.NovoNotaRepo(pool)
		contingenciaRepo = postgres.NovoContingenciaRepo(pool, cfg.App.Name)
		numeracao = postgres.NovoNumeracaoRepo(pool, cfg.Fiscal.Serie, cfg.Fiscal.ProximoNumero)
	} else {
		log.Warn().Msg("operando sem PostgreSQL: numeração em memória, sem histórico")
		numeracao = fiscal.NovaNumeracaoMemoria(cfg.Fiscal.ProximoNumero)
	}

	cliente := sefaz.NovoClienteSOAP(sefaz.Opcoes{
		CUF:     cfg.Fiscal.CUF,
		TpAmb:   cfg.Fiscal.Ambiente,
		Timeout: time.Duration(cfg.Fiscal.TimeoutSefazSegundos) * time.Second,
	})

	assinador := signer.NovoServicoAssinatura()
	if cfg.Fiscal.CertPath != "" {
		info, err := assinador.CarregarCertificado(nfce.MaterialCertificado{
			Caminho:      cfg.Fiscal.CertPath,
			CaminhoChave: cfg.Fiscal.CertKeyPath,
			Senha:        cfg.Fiscal.CertPassword,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("carregar certificado digital")
		}
		log.Info().
			Str("titular", info.Titular).
			Time("valido_ate", info.ValidoAte).
			Msg("certificado carregado")
	} else {
		log.Warn().Msg("FISCAL_CERT_PATH não configurado: emissão indisponível até carregar certificado")
	}

	gerenciador := fiscal.NovoGerenciadorContingencia(fiscal.OpcoesContingencia{
		Transmissor:      cliente,
		Log:              log.Componente("contingencia"),
		PausaEntreEnvios: time.Duration(cfg.Fiscal.PausaEntreEnviosMs) * time.Millisecond,
		Intervalo:        time.Duration(cfg.Fiscal.IntervaloVerificacaoMin) * time.Minute,
	})

	// Recupera a fila de contingência de um reinício anterior.
	if contingenciaRepo != nil {
		snap, err := contingenciaRepo.CarregarSnapshot(ctx)
		if err != nil {
			log.Error().Err(err).Msg("carregar snapshot de contingência")
		} else if snap != nil {
			gerenciador.Importar(snap)
			log.Info().Int("operacoes", len(snap.Operacoes)).Msg("fila de contingência restaurada")
		}
	}

	montador := fiscal.NovoMontadorDocumento(cfg.Fiscal, numeracao)
	emissor := fiscal.NovoEmissorFiscal(fiscal.OpcoesEmissor{
		Config:       cfg.Fiscal,
		Montador:     montador,
		Assinador:    assinador,
		Transmissor:  cliente,
		Contingencia: gerenciador,
		Repositorio:  notaRepo,
		Log:          log.Componente("emissor"),
	})

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	gerenciador.IniciarMonitoramento(monitorCtx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI em local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "PDV Fiscal API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Emissor:   emissor,
		Notas:     notaRepo,
		JWTSecret: cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("desligamento do servidor")
	}

	// Persiste a fila de contingência antes de morrer: operações pendentes
	// sobrevivem ao reinício do terminal.
	if contingenciaRepo != nil {
		if err := contingenciaRepo.SalvarSnapshot(ctx, gerenciador.Exportar()); err != nil {
			log.Error().Err(err).Msg("salvar snapshot de contingência")
		}
	}
	emissor.Destruir()

	log.Info().Msg("terminal fiscal encerrado")
}
