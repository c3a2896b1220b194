package cmd

import (
	"context"
	"time"

	"github.com/omnidesk/omnibridge/config"
	"github.com/omnidesk/omnibridge/core/database"
	"github.com/omnidesk/omnibridge/infrastructure/cloudapi"
	"github.com/omnidesk/omnibridge/infrastructure/meta"
	"github.com/omnidesk/omnibridge/infrastructure/valkey"
	"github.com/omnidesk/omnibridge/infrastructure/webchat"
	"github.com/omnidesk/omnibridge/infrastructure/whatsapp"
	"github.com/omnidesk/omnibridge/messaging/domain/channel"
	"github.com/omnidesk/omnibridge/messaging/registry"
	"github.com/omnidesk/omnibridge/messaging/repository"
	"github.com/omnidesk/omnibridge/messaging/session"
	"github.com/omnidesk/omnibridge/pkg/msgworker"
	"github.com/omnidesk/omnibridge/usecase"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfg *config.Config
	db  *gorm.DB

	vkClient *valkey.Client

	connectionRepo *repository.ConnectionGormRepository
	metaRepo       *repository.MetaGormRepository

	adapterRegistry *registry.Registry
	workerPool      *msgworker.Pool

	sendUsecase       usecase.ISendUsecase
	connectionUsecase usecase.IConnectionUsecase
	healthUsecase     usecase.IHealthUsecase
)

var rootCmd = &cobra.Command{
	Use:   "omnibridge",
	Short: "Unified messaging gateway over WhatsApp, Messenger, Instagram and web chat",
	Long: `Omnibridge exposes one message model and one HTTP API across five channel
backends: the WhatsApp device socket, the WhatsApp Cloud API, Facebook
Messenger, Instagram Direct and an embeddable web-chat widget.`,
}

func init() {
	time.Local = time.UTC
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	cobra.OnInitialize(initApp)
}

func initApp() {
	cfg = config.Load(".")

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	var err error
	db, err = database.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[CMD] Database init failed: %v", err)
	}

	ctx := context.Background()
	connectionRepo = repository.NewConnectionGormRepository(db)
	if err := connectionRepo.Init(ctx); err != nil {
		logrus.Fatalf("[CMD] Connection table migration failed: %v", err)
	}
	metaRepo = repository.NewMetaGormRepository(db)
	if err := metaRepo.Init(ctx); err != nil {
		logrus.Fatalf("[CMD] Message meta table migration failed: %v", err)
	}

	var sessionStore session.Store
	if cfg.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: "omnibridge",
		})
		if err != nil {
			logrus.Fatalf("[CMD] Valkey init failed: %v", err)
		}
		sessionStore = session.NewValkeyStore(vkClient, cfg.WebChat.SessionGraceWindow)
		logrus.Info("[CMD] Web-chat sessions backed by Valkey")
	} else {
		sessionStore = session.NewMemoryStore()
	}

	workerPool = msgworker.NewPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)
	workerPool.Start(ctx)

	adapterRegistry = registry.New()
	registerFactories(sessionStore)

	sendUsecase = usecase.NewSendService(adapterRegistry, metaRepo)
	connectionUsecase = usecase.NewConnectionService(connectionRepo, adapterRegistry)
	healthUsecase = usecase.NewHealthService(db, adapterRegistry)
}

// registerFactories binds each channel type to its adapter constructor. The
// whatsmeow client pool is shared across socket connections.
func registerFactories(sessionStore session.Store) {
	socketProvider := whatsapp.NewPoolProvider(&cfg.WhatsApp)

	adapterRegistry.RegisterFactory(channel.TypeWhatsApp, func(desc channel.ConnectionDescriptor) (channel.Adapter, error) {
		return whatsapp.NewAdapter(desc, socketProvider, metaRepo, &cfg.WhatsApp, workerPool), nil
	})
	adapterRegistry.RegisterFactory(channel.TypeWhatsAppCloud, func(desc channel.ConnectionDescriptor) (channel.Adapter, error) {
		return cloudapi.NewAdapter(desc, connectionRepo, &cfg.CloudAPI, workerPool), nil
	})
	adapterRegistry.RegisterFactory(channel.TypeFacebook, func(desc channel.ConnectionDescriptor) (channel.Adapter, error) {
		return meta.NewFacebookAdapter(desc, &cfg.Meta, workerPool), nil
	})
	adapterRegistry.RegisterFactory(channel.TypeInstagram, func(desc channel.ConnectionDescriptor) (channel.Adapter, error) {
		return meta.NewInstagramAdapter(desc, &cfg.Meta, workerPool), nil
	})
	adapterRegistry.RegisterFactory(channel.TypeWebChat, func(desc channel.ConnectionDescriptor) (channel.Adapter, error) {
		return webchat.NewAdapter(desc, sessionStore, &cfg.WebChat, workerPool), nil
	})
}

// StopApp tears down the live subsystems in dependency order.
func StopApp() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if adapterRegistry != nil {
		adapterRegistry.Shutdown(ctx)
	}
	if workerPool != nil {
		workerPool.Stop()
	}
	if vkClient != nil {
		vkClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	logrus.Info("[CMD] Shutdown complete")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalln(err)
	}
}
