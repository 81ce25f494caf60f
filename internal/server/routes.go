package server

import (
	"github.com/nfrund/huddle/internal/handlers"
	"github.com/nfrund/huddle/internal/middleware"
	"github.com/nfrund/huddle/internal/websocket"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	authHandler := handlers.NewAuthHandler(s.coord)
	roomHandler := handlers.NewRoomHandler(s.coord)
	socketHandler := websocket.NewHandler(s.coord, socketConfig(s.Cfg))
	requireAuth := middleware.Auth(s.coord)

	s.E.GET("/health", handlers.Health)

	api := s.E.Group("/api")
	api.POST("/register", authHandler.Register)
	api.POST("/login", authHandler.Login)
	api.POST("/token/validate", authHandler.ValidateToken)

	protected := api.Group("", requireAuth)
	protected.POST("/logout", authHandler.Logout)
	protected.POST("/clients", authHandler.OpenClient)
	protected.GET("/users", authHandler.Users)
	protected.GET("/rooms", roomHandler.List)
	protected.POST("/rooms", roomHandler.Create)
	protected.GET("/rooms/:id", roomHandler.Get)
	protected.POST("/rooms/:id/join", roomHandler.Join)
	protected.POST("/rooms/:id/messages", roomHandler.SendMessage)

	s.E.GET("/ws", socketHandler.Serve, requireAuth)
}
