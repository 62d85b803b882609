// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tempctl-service/internal/service"
	"tempctl-service/internal/utils"
)

// WebSocketHandler manages WebSocket connections for real-time communication
type WebSocketHandler struct {
	upgrader          websocket.Upgrader
	connections       *ConnectionManager
	controllerService *service.ControllerService
	operationService  *service.OperationService
	logger            *utils.ServiceLogger
	eventBus          *EventBus
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	controllerService *service.ControllerService,
	operationService *service.OperationService,
	logger *zap.Logger,
) *WebSocketHandler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// In production, implement proper origin checking
			return true
		},
	}

	handler := &WebSocketHandler{
		upgrader:          upgrader,
		connections:       NewConnectionManager(),
		controllerService: controllerService,
		operationService:  operationService,
		logger:            utils.NewServiceLogger(logger, "websocket-handler"),
		eventBus:          NewEventBus(),
	}

	// Start event bus
	go handler.eventBus.Start()

	return handler
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	// Controller-specific WebSocket connections
	router.GET("/controllers/:controller_id", h.HandleControllerConnection)

	// General controller events WebSocket
	router.GET("/events", h.HandleEventConnection)

	// Live temperature readings WebSocket
	router.GET("/readings", h.HandleReadingConnection)
}

// HandleControllerConnection handles controller-specific WebSocket connections
func (h *WebSocketHandler) HandleControllerConnection(c *gin.Context) {
	controllerID := c.Param("controller_id")
	if controllerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "controller_id is required"})
		return
	}

	// Upgrade connection
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	// Create client
	client := &Client{
		ID:           uuid.New().String(),
		Connection:   conn,
		Send:         make(chan []byte, 256),
		Type:         "controller",
		ControllerID: &controllerID,
		UserAgent:    c.Request.UserAgent(),
		RemoteAddr:   c.Request.RemoteAddr,
		ConnectedAt:  time.Now(),
	}

	// Register client
	h.connections.Register(client)
	h.logger.Info("Controller WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("controller_id", controllerID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	// Send initial controller status
	go h.sendInitialControllerStatus(client, controllerID)

	// Start client goroutines
	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// HandleEventConnection handles general event WebSocket connections
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        "events",
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// HandleReadingConnection handles live reading WebSocket connections
func (h *WebSocketHandler) HandleReadingConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Type:        "readings",
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Reading WebSocket client connected",
		zap.String("client_id", client.ID),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// handleClientRead handles reading messages from WebSocket client
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
	}()

	// Set read deadline and pong handler
	client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			break
		}

		// Parse message
		var message WebSocketMessage
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			h.logger.Error("Failed to parse WebSocket message",
				zap.Error(err),
				zap.String("client_id", client.ID),
			)
			continue
		}

		// Handle message
		h.handleClientMessage(client, &message)
	}
}

// handleClientWrite handles writing messages to WebSocket client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage handles incoming client messages
func (h *WebSocketHandler) handleClientMessage(client *Client, message *WebSocketMessage) {
	switch message.Type {
	case "subscribe":
		h.handleSubscription(client, message)
	case "unsubscribe":
		h.handleUnsubscription(client, message)
	case "controller_command":
		h.handleControllerCommand(client, message)
	case "ping":
		h.sendMessage(client, &WebSocketMessage{
			Type:      "pong",
			Timestamp: time.Now(),
		})
	default:
		h.logger.Warn("Unknown message type",
			zap.String("type", message.Type),
			zap.String("client_id", client.ID),
		)
	}
}

// handleSubscription handles client subscription requests
func (h *WebSocketHandler) handleSubscription(client *Client, message *WebSocketMessage) {
	if client.Subscriptions == nil {
		client.Subscriptions = make(map[string]bool)
	}

	if data, ok := message.Data.(map[string]interface{}); ok {
		if topic, ok := data["topic"].(string); ok {
			client.Subscriptions[topic] = true
			h.logger.Info("Client subscribed to topic",
				zap.String("client_id", client.ID),
				zap.String("topic", topic),
			)

			// Send subscription confirmation
			h.sendMessage(client, &WebSocketMessage{
				Type: "subscription_confirmed",
				Data: map[string]interface{}{
					"topic": topic,
				},
				Timestamp: time.Now(),
			})
		}
	}
}

// handleUnsubscription handles client unsubscription requests
func (h *WebSocketHandler) handleUnsubscription(client *Client, message *WebSocketMessage) {
	if client.Subscriptions == nil {
		return
	}

	if data, ok := message.Data.(map[string]interface{}); ok {
		if topic, ok := data["topic"].(string); ok {
			delete(client.Subscriptions, topic)
			h.logger.Info("Client unsubscribed from topic",
				zap.String("client_id", client.ID),
				zap.String("topic", topic),
			)
		}
	}
}

// handleControllerCommand handles controller command messages
func (h *WebSocketHandler) handleControllerCommand(client *Client, message *WebSocketMessage) {
	if client.ControllerID == nil {
		h.sendError(client, "controller_command only available on controller connections")
		return
	}

	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, "invalid command data")
		return
	}

	command, ok := data["command"].(string)
	if !ok {
		h.sendError(client, "command is required")
		return
	}

	// Execute controller command
	go h.executeControllerCommand(client, *client.ControllerID, command)
}

// executeControllerCommand executes a controller command
func (h *WebSocketHandler) executeControllerCommand(client *Client, controllerID, command string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	var result interface{}

	switch command {
	case "connect":
		err = h.controllerService.ConnectController(ctx, controllerID)
		result = map[string]interface{}{"connected": err == nil}

	case "disconnect":
		err = h.controllerService.DisconnectController(ctx, controllerID)
		result = map[string]interface{}{"disconnected": err == nil}

	case "test":
		var testResult *service.TestResult
		testResult, err = h.controllerService.TestController(ctx, controllerID)
		result = testResult

	case "status":
		var health *service.ControllerHealth
		health, err = h.controllerService.GetControllerHealth(ctx, controllerID)
		result = health

	default:
		h.sendError(client, fmt.Sprintf("unknown command: %s", command))
		return
	}

	// Send response
	response := &WebSocketMessage{
		Type: "command_response",
		Data: map[string]interface{}{
			"command": command,
			"success": err == nil,
			"result":  result,
		},
		Timestamp: time.Now(),
	}

	if err != nil {
		response.Data.(map[string]interface{})["error"] = err.Error()
	}

	h.sendMessage(client, response)
}

// sendInitialControllerStatus sends initial controller status to client
func (h *WebSocketHandler) sendInitialControllerStatus(client *Client, controllerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	controller, err := h.controllerService.GetController(ctx, controllerID)
	if err != nil {
		h.sendError(client, fmt.Sprintf("failed to get controller: %v", err))
		return
	}

	health, err := h.controllerService.GetControllerHealth(ctx, controllerID)
	if err != nil {
		h.logger.Error("Failed to get controller health", zap.Error(err))
	}

	message := &WebSocketMessage{
		Type: "initial_status",
		Data: map[string]interface{}{
			"controller": controller,
			"health":     health,
		},
		Timestamp: time.Now(),
	}

	h.sendMessage(client, message)
}

// sendMessage sends a message to a client
func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	select {
	case client.Send <- messageBytes:
	default:
		h.logger.Warn("Client send channel full, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

// sendError sends an error message to a client
func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	message := &WebSocketMessage{
		Type: "error",
		Data: map[string]interface{}{
			"error": errorMsg,
		},
		Timestamp: time.Now(),
	}
	h.sendMessage(client, message)
}

// BroadcastControllerEvent broadcasts controller events to relevant clients
func (h *WebSocketHandler) BroadcastControllerEvent(controllerID string, eventType string, data interface{}) {
	message := &WebSocketMessage{
		Type: "controller_event",
		Data: map[string]interface{}{
			"controller_id": controllerID,
			"event_type":    eventType,
			"data":          data,
		},
		Timestamp: time.Now(),
	}

	h.broadcastToControllerClients(controllerID, message)
	h.broadcastToEventClients(message)
}

// BroadcastOperationEvent broadcasts operation events to relevant clients
func (h *WebSocketHandler) BroadcastOperationEvent(operationID string, controllerID string, eventType string, data interface{}) {
	message := &WebSocketMessage{
		Type: "operation_event",
		Data: map[string]interface{}{
			"operation_id":  operationID,
			"controller_id": controllerID,
			"event_type":    eventType,
			"data":          data,
		},
		Timestamp: time.Now(),
	}

	h.broadcastToEventClients(message)
	h.broadcastToControllerClients(controllerID, message)
}

// BroadcastReading broadcasts a temperature reading to reading and controller clients
func (h *WebSocketHandler) BroadcastReading(controllerID string, channel string, value float64) {
	message := &WebSocketMessage{
		Type: "reading",
		Data: map[string]interface{}{
			"controller_id": controllerID,
			"channel":       channel,
			"value":         value,
			"unit":          "K",
		},
		Timestamp: time.Now(),
	}

	h.broadcastToReadingClients(message)
	h.broadcastToControllerClients(controllerID, message)
}

// broadcastToControllerClients broadcasts to clients connected to a specific controller
func (h *WebSocketHandler) broadcastToControllerClients(controllerID string, message *WebSocketMessage) {
	clients := h.connections.GetControllerClients(controllerID)
	h.broadcastToClients(clients, message)
}

// broadcastToEventClients broadcasts to all event clients
func (h *WebSocketHandler) broadcastToEventClients(message *WebSocketMessage) {
	clients := h.connections.GetEventClients()
	h.broadcastToClients(clients, message)
}

// broadcastToReadingClients broadcasts to all reading-stream clients
func (h *WebSocketHandler) broadcastToReadingClients(message *WebSocketMessage) {
	clients := h.connections.GetReadingClients()
	h.broadcastToClients(clients, message)
}

// broadcastToClients broadcasts message to specified clients
func (h *WebSocketHandler) broadcastToClients(clients []*Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", client.ID),
			)
		}
	}
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}
