package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkwell/internal/service"
)

type subscribeRequest struct {
	Email string `json:"email"`
}

// Subscribe 处理公开的订阅请求。已退订的邮箱会被重新激活。
func (a *API) Subscribe(c *gin.Context) {
	var req subscribeRequest
	if !bindJSON(c, &req, "invalid request body") {
		return
	}

	subscriber, reactivated, err := a.subscribers.Subscribe(req.Email, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAlreadySubscribed):
			respondError(c, http.StatusBadRequest, "This email is already subscribed")
		case service.IsValidationError(err):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			c.Error(err)
			respondError(c, http.StatusInternalServerError, "failed to subscribe")
		}
		return
	}

	message := "Successfully subscribed"
	if reactivated {
		message = "Welcome back! Your subscription has been reactivated"
	}
	c.JSON(http.StatusCreated, gin.H{"message": message, "subscriber": subscriber})
}

// ListSubscribers 返回全部订阅者，后台专用。
func (a *API) ListSubscribers(c *gin.Context) {
	subscribers, err := a.subscribers.ListAll()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load subscribers")
		return
	}
	c.JSON(http.StatusOK, subscribers)
}

// DeleteSubscriber 删除订阅者。
func (a *API) DeleteSubscriber(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.subscribers.Delete(id); err != nil {
		if errors.Is(err, service.ErrSubscriberNotFound) {
			respondError(c, http.StatusNotFound, "subscriber not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to delete subscriber")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "subscriber deleted"})
}

type subscriberStatusRequest struct {
	Status string `json:"status"`
}

// UpdateSubscriberStatus 切换订阅状态（active/unsubscribed）。
func (a *API) UpdateSubscriberStatus(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req subscriberStatusRequest
	if !bindJSON(c, &req, "invalid request body") {
		return
	}

	subscriber, err := a.subscribers.UpdateStatus(id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriberNotFound):
			respondError(c, http.StatusNotFound, "subscriber not found")
		case service.IsValidationError(err):
			respondError(c, http.StatusBadRequest, err.Error())
		default:
			respondError(c, http.StatusInternalServerError, "failed to update subscriber")
		}
		return
	}
	c.JSON(http.StatusOK, subscriber)
}
