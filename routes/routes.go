package routes

import (
	"time"

	controller "foundermatch/controllers"
	"foundermatch/config"
	"foundermatch/middleware"
	"foundermatch/services"
	"foundermatch/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const rateLimitWindow = time.Minute

// Router owns the controllers and mounts them on a Fiber app
type Router struct {
	Auth          *controller.AuthController
	Users         *controller.UserController
	Connections   *controller.ConnectionController
	Chats         *controller.ChatController
	Notifications *controller.NotificationController
	Teams         *controller.TeamController
	Payments      *controller.PaymentController

	protected        fiber.Handler
	rateLimitStorage fiber.Storage
	connectionLimit  int
	messageLimit     int
}

// New builds the controllers around svc. A nil storage keeps rate-limit
// counters in process memory.
func New(db *gorm.DB, cfg *config.Config, svc *services.Services, issuer *utils.TokenIssuer, storage fiber.Storage) *Router {
	return &Router{
		Auth:  controller.NewAuthController(svc.Users, issuer, cfg),
		Users: &controller.UserController{Users: svc.Users},
		Connections: &controller.ConnectionController{
			Connections:   svc.Connections,
			Notifications: svc.Notifications,
		},
		Chats:         &controller.ChatController{Chats: svc.Chats},
		Notifications: &controller.NotificationController{Notifications: svc.Notifications},
		Teams:         &controller.TeamController{Teams: svc.Teams},
		Payments:      &controller.PaymentController{Payments: svc.Payments},

		protected:        middleware.Protected(db, issuer),
		rateLimitStorage: storage,
		connectionLimit:  cfg.RateLimitConnections,
		messageLimit:     cfg.RateLimitMessages,
	}
}

func (r *Router) SetupAuthRoutes(app *fiber.App) {
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	auth.Get("/google", r.Auth.GoogleOAuth)
	auth.Get("/google/callback", r.Auth.GoogleOAuthCallback)
	auth.Post("/refresh", r.Auth.RefreshToken)

	protectedAuth := auth.Group("", r.protected)
	protectedAuth.Get("/me", r.Auth.GetCurrentUser)

	logrus.Info("Authentication routes initialized successfully")
}

func (r *Router) SetupAPIRoutes(app *fiber.App) {
	// Gateway callbacks carry no JWT, so the webhook sits outside the protected group
	app.Post("/api/v1/payment/webhook", r.Payments.HandleWebhook)

	api := app.Group("/api/v1", r.protected, logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Users
	api.Get("/users/:id", r.Users.GetUser)
	api.Put("/profile", r.Users.UpdateProfile)
	api.Delete("/profile", r.Users.DeleteAccount)

	// Connection graph
	connections := api.Group("/connections")
	connections.Get("/", r.Connections.ListConnections)
	connections.Post("/:id", middleware.RateLimiter(r.connectionLimit, rateLimitWindow, r.rateLimitStorage), r.Connections.RequestConnection)
	connections.Delete("/:id", r.Connections.Disconnect)

	// Chats
	chats := api.Group("/chats")
	chats.Get("/", r.Chats.ListChats)
	chats.Post("/", r.Chats.CreateChat)
	chats.Get("/:id/messages", r.Chats.ListMessages)
	chats.Post("/:id/messages", middleware.RateLimiter(r.messageLimit, rateLimitWindow, r.rateLimitStorage), r.Chats.PostMessage)

	// Notifications
	notifications := api.Group("/notifications")
	notifications.Get("/", r.Notifications.ListNotifications)
	notifications.Get("/unread-count", r.Notifications.UnreadCount)
	notifications.Post("/read-all", r.Notifications.MarkAllRead)
	notifications.Post("/:id/actions", r.Notifications.ApplyAction)

	// Teams
	teams := api.Group("/teams")
	teams.Post("/", r.Teams.CreateTeam)
	teams.Get("/", r.Teams.ListTeams)
	teams.Get("/:id", r.Teams.GetTeam)
	teams.Put("/:id", r.Teams.UpdateTeam)
	teams.Delete("/:id", r.Teams.DeleteTeam)
	teams.Post("/:id/join", r.Teams.RequestJoin)
	teams.Post("/:id/members/:userId/approve", r.Teams.ApproveJoin)
	teams.Post("/:id/members/:userId/decline", r.Teams.DeclineJoin)
	teams.Post("/:id/invites", r.Teams.InviteMembers)

	// Billing
	api.Get("/plans", r.Payments.ListPlans)
	api.Post("/payment/orders", r.Payments.CreateOrder)

	logrus.Info("API routes initialized successfully")
}

func (r *Router) SetupRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	r.SetupAuthRoutes(app)
	r.SetupAPIRoutes(app)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "The requested resource was not found",
		})
	})
}
