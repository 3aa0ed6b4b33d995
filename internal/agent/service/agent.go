package service

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/agent-gateway/internal/agent/biz"
	"github.com/lk2023060901/agent-gateway/internal/agent/types"
	apperrors "github.com/lk2023060901/agent-gateway/internal/pkg/errors"
	"github.com/lk2023060901/agent-gateway/internal/pkg/response"
)

// ChatRunner runs one hosted-agent chat turn
type ChatRunner interface {
	RunChat(ctx context.Context, req *types.ChatThreadRequest) (*types.RequestResult, error)
}

// WeatherRunner runs the weather workflows
type WeatherRunner interface {
	RunWeather(ctx context.Context, req *types.ChatRequest) (*types.RequestResult, error)
	RunWeatherAgent(ctx context.Context, req *types.ChatThreadRequest) (*types.RequestResult, error)
}

var (
	_ ChatRunner    = (*biz.ChatUseCase)(nil)
	_ WeatherRunner = (*biz.WeatherUseCase)(nil)
)

// AgentService handles HTTP requests for the weather and chat routes
type AgentService struct {
	chat    ChatRunner
	weather WeatherRunner
}

// NewAgentService creates a new agent service
func NewAgentService(chat ChatRunner, weather WeatherRunner) *AgentService {
	return &AgentService{
		chat:    chat,
		weather: weather,
	}
}

// RegisterRoutes registers the agent routes
func (s *AgentService) RegisterRoutes(r gin.IRoutes) {
	r.POST("/weather", s.Weather)
	r.POST("/agent/weather", s.AgentWeather)
	r.POST("/agent/chat", s.AgentChat)
}

// Weather answers a stateless weather conversation
// @Summary Weather chat
// @Tags agent
// @Accept json
// @Produce json
// @Param request body types.ChatRequest true "Conversation"
// @Success 200 {object} response.Result
// @Router /weather [post]
func (s *AgentService) Weather(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.HandleError(c, apperrors.Wrap(err, apperrors.ErrInvalidRequest, "malformed request body"))
		return
	}

	result, err := s.weather.RunWeather(c.Request.Context(), &req)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, result)
}

// AgentWeather answers one turn of a weather agent thread
// @Summary Weather agent
// @Tags agent
// @Accept json
// @Produce json
// @Param request body types.ChatThreadRequest true "Turn"
// @Success 200 {object} response.Result
// @Router /agent/weather [post]
func (s *AgentService) AgentWeather(c *gin.Context) {
	req, ok := bindThreadRequest(c)
	if !ok {
		return
	}

	result, err := s.weather.RunWeatherAgent(c.Request.Context(), req)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, result)
}

// AgentChat answers one turn of a hosted-agent thread
// @Summary Agent chat
// @Tags agent
// @Accept json
// @Produce json
// @Param request body types.ChatThreadRequest true "Turn"
// @Success 200 {object} response.Result
// @Router /agent/chat [post]
func (s *AgentService) AgentChat(c *gin.Context) {
	req, ok := bindThreadRequest(c)
	if !ok {
		return
	}

	result, err := s.chat.RunChat(c.Request.Context(), req)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, result)
}

func bindThreadRequest(c *gin.Context) (*types.ChatThreadRequest, bool) {
	var req types.ChatThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.HandleError(c, apperrors.Wrap(err, apperrors.ErrInvalidRequest, "malformed request body"))
		return nil, false
	}
	return &req, true
}
