package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/visaflow/visaflow-backend/internal/logger"
	"github.com/visaflow/visaflow-backend/internal/services"
)

type UserHandler struct {
	log         *logger.Logger
	userService services.UserService
	authService services.AuthService
}

func NewUserHandler(log *logger.Logger, userService services.UserService, authService services.AuthService) *UserHandler {
	handlerLog := log.With("handler", "UserHandler")
	return &UserHandler{log: handlerLog, userService: userService, authService: authService}
}

func (uh *UserHandler) Register(c *gin.Context) {
	var input services.RegisterUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, 400, "validation", err)
		return
	}
	user, err := uh.userService.Register(c.Request.Context(), input)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, gin.H{"user": user})
}

func (uh *UserHandler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, 400, "validation", err)
		return
	}
	token, user, err := uh.authService.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"token": token, "user": user})
}

func (uh *UserHandler) GetAll(c *gin.Context) {
	users, err := uh.userService.GetAll(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"users": users})
}

func (uh *UserHandler) GetByID(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	user, err := uh.userService.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) Delete(c *gin.Context) {
	id, err := pathUUID(c, "id")
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if err := uh.userService.Delete(c.Request.Context(), id); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": id})
}
