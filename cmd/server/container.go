package main

import (
	"context"
	"log"

	"github.com/Abraxas-365/supportflow/catalog"
	"github.com/Abraxas-365/supportflow/catalog/catalogapi"

	"github.com/Abraxas-365/supportflow/channels/mail"
	"github.com/Abraxas-365/supportflow/channels/wabridge"

	"github.com/Abraxas-365/supportflow/conversation"
	"github.com/Abraxas-365/supportflow/conversation/conversationinfra"

	"github.com/Abraxas-365/supportflow/engine"
	"github.com/Abraxas-365/supportflow/engine/delayscheduler"
	"github.com/Abraxas-365/supportflow/engine/engineapi"
	"github.com/Abraxas-365/supportflow/engine/msgprocessor"
	"github.com/Abraxas-365/supportflow/engine/nodeexec"
	"github.com/Abraxas-365/supportflow/engine/workflowexec"

	"github.com/Abraxas-365/supportflow/iam/auth"

	"github.com/Abraxas-365/supportflow/pkg/aigen"
	"github.com/Abraxas-365/supportflow/pkg/config"
	"github.com/Abraxas-365/supportflow/pkg/database"

	"github.com/Abraxas-365/supportflow/workflow"
	"github.com/Abraxas-365/supportflow/workflow/workflowapi"
	"github.com/Abraxas-365/supportflow/workflow/workflowinfra"
	"github.com/Abraxas-365/supportflow/workflow/workflowsrv"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
)

// Container contains all application dependencies
type Container struct {
	// =================================================================
	// CONFIGURATION & INFRASTRUCTURE
	// =================================================================
	Config      *config.Config
	DB          *sqlx.DB
	RedisClient *redis.Client
	S3Client    *s3.Client

	// =================================================================
	// AUTH
	// =================================================================
	TokenService   auth.TokenService
	AuthMiddleware *auth.AuthMiddleware

	// =================================================================
	// CATALOG
	// =================================================================
	Catalog           *catalog.Registry
	CandidateResolver *catalog.CandidateResolver
	CatalogHandler    *catalogapi.CatalogHandler

	// =================================================================
	// WORKFLOWS
	// =================================================================
	WorkflowRepo    workflow.WorkflowRepository
	AttachmentStore workflow.AttachmentStore
	WorkflowService *workflowsrv.WorkflowService
	WorkflowHandler *workflowapi.WorkflowHandler

	// =================================================================
	// CONVERSATIONS
	// =================================================================
	ConversationRepo conversation.ConversationRepository

	// =================================================================
	// COLLABORATORS
	// =================================================================
	Gateway   engine.MessageGateway
	Mailer    engine.Mailer
	Generator engine.Generator

	// =================================================================
	// ENGINE
	// =================================================================
	DelayScheduler   *delayscheduler.RedisDelayScheduler
	Evaluator        *workflowexec.Evaluator
	MessageProcessor *msgprocessor.MessageProcessor
	EventHandler     *engineapi.EventHandler

	// Action executors
	SendMessageExecutor engine.ActionExecutor
	AIReplyExecutor     engine.ActionExecutor
	SendEmailExecutor   engine.ActionExecutor
}

// NewContainer creates a new dependency container
func NewContainer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client) *Container {
	c := &Container{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
	}

	log.Println("📦 Initializing dependency container...")

	c.initAuth()
	c.initCatalog()
	c.initCollaborators()
	c.initEngine() // ⚙️ Engine before workflows (workflows cancel its continuations)
	c.initWorkflows()
	c.initHandlers()

	log.Println("✅ Dependency container initialized successfully")

	return c
}

// =================================================================
// AUTH INITIALIZATION
// =================================================================

func (c *Container) initAuth() {
	log.Println("  🔐 Initializing auth services...")

	c.TokenService = auth.NewJWTService(c.Config.Auth.JWTSecret, 0, c.Config.Auth.Issuer)
	c.AuthMiddleware = auth.NewAuthMiddleware(c.TokenService)

	if c.Config.Auth.ServiceKey == "" {
		log.Println("  ⚠️  SERVICE_API_KEY not set, event ingestion will reject every call")
	}
}

// =================================================================
// CATALOG INITIALIZATION
// =================================================================

func (c *Container) initCatalog() {
	log.Println("  📚 Initializing block catalog...")

	c.Catalog = catalog.Default()
	c.CandidateResolver = catalog.NewCandidateResolver(
		c.Catalog,
		c.Config.Catalog.RemoteBaseURL,
		c.Config.Catalog.CandidateTTL,
		c.Config.Catalog.CandidateTimeout,
	)

	log.Printf("  ✅ Catalog ready with %d entries", len(c.Catalog.All()))
}

// =================================================================
// COLLABORATORS INITIALIZATION
// =================================================================

func (c *Container) initCollaborators() {
	log.Println("  🔌 Initializing external collaborators...")

	c.Gateway = wabridge.NewGateway(c.Config.Bridge.BaseURL, c.Config.Bridge.APIKey, c.Config.Bridge.Timeout)
	c.Mailer = mail.NewSMTPMailer(
		c.Config.Mail.Host,
		c.Config.Mail.Port,
		c.Config.Mail.Username,
		c.Config.Mail.Password,
		c.Config.Mail.From,
	)

	if c.Config.AI.APIKey == "" {
		log.Println("  ⚠️  OPENAI_API_KEY not set, ai_reply blocks will be disabled")
	} else {
		temperature := c.Config.AI.Temperature
		maxTokens := c.Config.AI.MaxTokens
		c.Generator = aigen.NewOpenAIGenerator(c.Config.AI.APIKey, aigen.Config{
			Model:        c.Config.AI.Model,
			SystemPrompt: c.Config.AI.SystemPrompt,
			Temperature:  &temperature,
			MaxTokens:    &maxTokens,
		})
	}

	c.S3Client = database.NewS3Client(c.Config.Storage)
	c.ConversationRepo = conversationinfra.NewPostgresConversationRepository(c.DB)
}

// =================================================================
// ENGINE INITIALIZATION
// =================================================================

func (c *Container) initEngine() {
	log.Println("  ⚙️  Initializing engine...")

	c.WorkflowRepo = workflowinfra.NewPostgresWorkflowRepository(c.DB)

	c.DelayScheduler = delayscheduler.NewRedisDelayScheduler(c.RedisClient, delayscheduler.Options{
		PollSpec:  c.Config.Engine.DelayPollSpec,
		BatchSize: c.Config.Engine.DelayBatchSize,
	})

	c.SendMessageExecutor = nodeexec.NewSendMessageExecutor(c.Gateway)
	c.SendEmailExecutor = nodeexec.NewSendEmailExecutor(c.Mailer)
	executors := []engine.ActionExecutor{c.SendMessageExecutor, c.SendEmailExecutor}
	if c.Generator != nil {
		c.AIReplyExecutor = nodeexec.NewAIReplyExecutor(c.Generator, c.Gateway)
		executors = append(executors, c.AIReplyExecutor)
	}

	matcher := engine.NewMatcher(c.Catalog, engine.NewPredicateEvaluator())
	c.Evaluator = workflowexec.NewEvaluator(
		c.Catalog,
		matcher,
		c.DelayScheduler,
		workflowexec.Config{
			MaxDepth:      c.Config.Engine.MaxDepth,
			ActionTimeout: c.Config.Engine.ActionTimeout,
		},
		executors...,
	)

	c.MessageProcessor = msgprocessor.NewMessageProcessor(
		c.WorkflowRepo,
		c.ConversationRepo,
		c.Evaluator,
		c.Gateway,
		c.Config.Engine.SampleReply,
	)

	// Due continuations resume through the processor
	c.DelayScheduler.SetHandler(c.MessageProcessor.HandleContinuation)

	log.Printf("  ✅ Engine ready with %d action executors", len(executors))
}

// StartWorkers starts the background delay poller
func (c *Container) StartWorkers(ctx context.Context) error {
	return c.DelayScheduler.Start(ctx)
}

// =================================================================
// WORKFLOW INITIALIZATION
// =================================================================

func (c *Container) initWorkflows() {
	log.Println("  🧩 Initializing workflow services...")

	c.AttachmentStore = workflowinfra.NewS3AttachmentStore(c.S3Client, c.Config.Storage.Bucket)
	c.WorkflowService = workflowsrv.NewWorkflowService(
		c.WorkflowRepo,
		c.AttachmentStore,
		c.Catalog,
		c.DelayScheduler,
	)
}

// =================================================================
// HANDLERS INITIALIZATION
// =================================================================

func (c *Container) initHandlers() {
	log.Println("  🛣️  Initializing HTTP handlers...")

	c.CatalogHandler = catalogapi.NewCatalogHandler(c.Catalog, c.CandidateResolver)
	c.WorkflowHandler = workflowapi.NewWorkflowHandler(c.WorkflowService)
	c.EventHandler = engineapi.NewEventHandler(c.MessageProcessor, c.DelayScheduler)
}

// =================================================================
// LIFECYCLE
// =================================================================

func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.DelayScheduler != nil {
		log.Println("  ⏰ Stopping delay scheduler...")
		c.DelayScheduler.Stop()
	}

	if c.DB != nil {
		log.Println("  🗄️  Closing database connections...")
		if err := database.CloseDB(c.DB); err != nil {
			log.Printf("  ⚠️  Failed to close database: %v", err)
		}
	}

	if c.RedisClient != nil {
		log.Println("  🔴 Closing Redis connections...")
		if err := database.CloseRedis(c.RedisClient); err != nil {
			log.Printf("  ⚠️  Failed to close Redis: %v", err)
		}
	}

	log.Println("✅ Container cleanup complete")
}

func (c *Container) HealthCheck(ctx context.Context) map[string]bool {
	health := make(map[string]bool)

	if c.DB != nil {
		health["database"] = c.DB.PingContext(ctx) == nil
	} else {
		health["database"] = false
	}

	if c.RedisClient != nil {
		health["redis"] = c.RedisClient.Ping(ctx).Err() == nil
	} else {
		health["redis"] = false
	}

	if c.DelayScheduler != nil {
		_, err := c.DelayScheduler.PendingCount(ctx)
		health["delay_scheduler"] = err == nil
	} else {
		health["delay_scheduler"] = false
	}

	health["message_processor"] = c.MessageProcessor != nil
	health["ai_generator"] = c.Generator != nil

	return health
}

func (c *Container) GetServiceNames() []string {
	return []string{
		"WorkflowService",
		"CandidateResolver",
		"Evaluator",
		"MessageProcessor",
		"DelayScheduler",
	}
}

func (c *Container) GetRepositoryNames() []string {
	return []string{
		"WorkflowRepo",
		"ConversationRepo",
		"AttachmentStore",
	}
}

func (c *Container) GetActionExecutorNames() []string {
	names := []string{}
	for _, ex := range []engine.ActionExecutor{c.SendMessageExecutor, c.AIReplyExecutor, c.SendEmailExecutor} {
		if ex != nil {
			names = append(names, ex.BlockKey())
		}
	}
	return names
}
