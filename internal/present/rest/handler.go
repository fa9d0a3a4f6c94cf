package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/dvote-dapp/dvote/internal/domain"
	"github.com/dvote-dapp/dvote/internal/present/rest/middleware"
	"github.com/dvote-dapp/dvote/internal/present/rest/presenter"
	"github.com/dvote-dapp/dvote/internal/service"
	"github.com/dvote-dapp/dvote/internal/usecase"
)

type Handler struct {
	config  domain.Config
	account *usecase.AccountUsecase
	voter   *usecase.VoterUsecase
	owner   *usecase.TopicOwnerUsecase
	auth    *middleware.AuthMiddleware
	wallet  *service.WalletService
	signal  *service.SignalService
	metrics http.Handler
}

func NewHandler(
	config domain.Config,
	account *usecase.AccountUsecase,
	voter *usecase.VoterUsecase,
	owner *usecase.TopicOwnerUsecase,
	auth *middleware.AuthMiddleware,
	wallet *service.WalletService,
	signal *service.SignalService,
	metrics http.Handler,
) *Handler {
	return &Handler{
		config:  config,
		account: account,
		voter:   voter,
		owner:   owner,
		auth:    auth,
		wallet:  wallet,
		signal:  signal,
		metrics: metrics,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.handleHealthz)
	if h.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(h.metrics))
	}
	e.GET("/realtime", h.handleRealtime, h.auth.IdentifyIdentity, h.auth.RequireAccount)

	user := e.Group("/user", h.auth.IdentifyIdentity)
	user.POST("/register", h.handleRegister)
	user.POST("/login", h.handleLogin)

	authed := user.Group("", h.auth.RequireAccount)
	authed.POST("/logout", h.handleLogout)
	authed.POST("/set/voting-details", h.handleDeclareTopic)

	voter := authed.Group("/voter")
	voter.POST("/update-profile", h.handleUpdateProfile)
	voter.POST("/apply/candidate", h.handleApplyCandidate)
	voter.GET("/voter-list", h.handleVoterList)
	voter.GET("/candidate-list", h.handleCandidateList)
	voter.GET("/get-voter-no", h.handleVoterCount)
	voter.GET("/get-candidate-no", h.handleCandidateCount)
	voter.POST("/vote", h.handleVote)
	voter.GET("/get-result", h.handleResult)
	voter.GET("/history", h.handleHistory)
	voter.GET("/chain-tally", h.handleChainTally)

	owner := authed.Group("/topic-owner")
	owner.GET("/not-verified/voter-list", h.handleUnverifiedVoters)
	owner.GET("/unapproved/candidate-list", h.handleUnapprovedCandidates)
	owner.PUT("/verify/voter", h.handleVerifyVoter)
	owner.POST("/approve/candidate", h.handleApproveCandidate)
	owner.PUT("/toggle-voting", h.handleToggleVoting)
	owner.POST("/result", h.handlePublishResult)
	owner.POST("/sync-tallies", h.handleSyncTallies)
}

func (h *Handler) handleHealthz(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"}, "Healthy.")
}

func (h *Handler) setCookie(c echo.Context, name, value string, ttl time.Duration) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		cookie.MaxAge = -1
	} else {
		cookie.Expires = time.Now().Add(ttl)
	}
	c.SetCookie(cookie)
}

type registerRequest struct {
	Fullname      string `json:"fullname"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	WalletAddress string `json:"walletAddress"`
	Avatar        string `json:"avatar"`
}

func (h *Handler) handleRegister(c echo.Context) error {
	ctx := c.Request().Context()

	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "Malformed request body.")
	}

	account, err := h.account.Register(ctx, usecase.RegisterInput{
		Fullname:      req.Fullname,
		Email:         req.Email,
		Password:      req.Password,
		WalletAddress: req.WalletAddress,
		Avatar:        req.Avatar,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, account, "User created successfully.")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(c echo.Context) error {
	ctx := c.Request().Context()

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "Malformed request body.")
	}

	account, tokens, err := h.account.Login(ctx, req.Email, req.Password)
	if err != nil {
		return presenter.Error(c, err)
	}

	h.setCookie(c, domain.AccessTokenCookie, tokens.AccessToken, h.config.AccessTokenTTL)
	h.setCookie(c, domain.RefreshTokenCookie, tokens.RefreshToken, h.config.RefreshTokenTTL)

	return presenter.OK(c, echo.Map{
		"user":         account,
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	}, "Login successful.")
}

func (h *Handler) handleLogout(c echo.Context) error {
	ctx := c.Request().Context()
	account, _ := middleware.Requester(c)

	if err := h.account.Logout(ctx, account.ID); err != nil {
		return presenter.Error(c, err)
	}

	h.setCookie(c, domain.AccessTokenCookie, "", 0)
	h.setCookie(c, domain.RefreshTokenCookie, "", 0)
	return presenter.OK(c, echo.Map{}, "Logout successful.")
}

type declareRequest struct {
	VotingTopicName string `json:"votingTopicName"`
	VotingTopicID   string `json:"votingTopicId"`
}

func (h *Handler) handleDeclareTopic(c echo.Context) error {
	ctx := c.Request().Context()
	account, _ := middleware.Requester(c)

	var req declareRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "Malformed request body.")
	}

	result, err := h.account.DeclareTopic(ctx, account.ID, usecase.DeclareInput{
		VotingTopicID:   req.VotingTopicID,
		VotingTopicName: req.VotingTopicName,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.Created(c, result, "Voting topic declared.")
}

// walletProof is embedded by requests that must prove wallet ownership.
type walletProof struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

func (h *Handler) checkWallet(c echo.Context, proof walletProof) (domain.Account, error) {
	account, _ := middleware.Requester(c)
	err := h.wallet.VerifyOwnership(account, service.OwnershipProof{
		Address:   proof.Address,
		Signature: proof.Signature,
		Message:   proof.Message,
	})
	return account, err
}

type updateProfileRequest struct {
	walletProof
	VoterID       string `json:"voterId"`
	VotingTopicID string `json:"votingTopicId"`
}

func (h *Handler) handleUpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "Malformed request body.")
	}
	account, err := h.checkWallet(c, req.walletProof)
	if err != nil {
		return presenter.Error(c, err)
	}

	profile, err := h.voter.UpdateProfile(ctx, account.ID, req.VotingTopicID, req.VoterID)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, profile, "Voter profile updated.")
}

type applyRequest struct {
	Bio           string `json:"bio"`
	Party         string `json:"party"`
	VotingTopicID string `json:"votingTopicId"`
}

func (h *Handler) handleApplyCandidate(c echo.Context) error {
	ctx := c.Request().Context()
	account, _ := middleware.Requester(c)

	var req applyRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "Malformed request body.")
	}

	entry, err := h.voter.ApplyCandidate(ctx, account.ID, usecase.ApplyInput{
		VotingTopicID: req.VotingTopicID,
		Party:         req.Party,
		Bio:           req.Bio,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, entry, "Successfully applied as a candidate.")
}

func (h *Handler) handleVoterList(c echo.Context) error {
	voters, err := h.voter.ListVoters(c.Request().Context(), c.QueryParam("votingTopicId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, voters, "Verified voters.")
}

func (h *Handler) handleCandidateList(c echo.Context) error {
	candidates, err := h.voter.ListCandidates(c.Request().Context(), c.QueryParam("votingTopicId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, candidates, "Approved candidates.")
}

func (h *Handler) handleVoterCount(c echo.Context) error {
	count, err := h.voter.CountVoters(c.Request().Context(), c.QueryParam("votingTopicId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"count": count}, "Verified voter count.")
}

func (h *Handler) handleCandidateCount(c echo.Context) error {
	count, err := h.voter.CountCandidates(c.Request().Context(), c.QueryParam("votingTopicId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"count": count}, "Approved candidate count.")
}

type voteRequest struct {
	walletProof
	VotingTopicID string `json:"votingTopicId"`
	CandidateID   string `json:"candidateId"`
}

func (h *Handler) handleVote(c echo.Context) error {
	ctx := c.Request().Context()

	var req voteRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "Malformed request body.")
	}
	account, err := h.checkWallet(c, req.walletProof)
	if err != nil {
		return presenter.Error(c, err)
	}

	entry, err := h.voter.CastVote(ctx, account.ID, usecase.CastInput{
		VotingTopicID: req.VotingTopicID,
		CandidateID:   req.CandidateID,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, entry, "Vote successfully cast.")
}

func (h *Handler) handleResult(c echo.Context) error {
	account, _ := middleware.Requester(c)

	results, err := h.voter.GetResults(c.Request().Context(), account.ID, c.QueryParam("votingTopicId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, results, "Voting result list.")
}

func (h *Handler) handleHistory(c echo.Context) error {
	account, _ := middleware.Requester(c)

	history, err := h.voter.GetHistory(c.Request().Context(), account.ID)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, history, "Voting history.")
}

func (h *Handler) handleChainTally(c echo.Context) error {
	tally, err := h.voter.ChainTally(c.Request().Context(), c.QueryParam("votingTopicId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, tally, "On-chain tally.")
}

func (h *Handler) handleUnverifiedVoters(c echo.Context) error {
	account, _ := middleware.Requester(c)

	voters, err := h.owner.ListUnverifiedVoters(c.Request().Context(), account.ID, c.QueryParam("votingTopicId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, voters, "Unverified voters.")
}

func (h *Handler) handleUnapprovedCandidates(c echo.Context) error {
	account, _ := middleware.Requester(c)

	candidates, err := h.owner.ListUnapprovedCandidates(c.Request().Context(), account.ID, c.QueryParam("votingTopicId"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, candidates, "Unapproved candidates.")
}

type verifyRequest struct {
	VotingTopicID string `json:"votingTopicId"`
	WalletAddress string `json:"walletAddress"`
	VoterID       string `json:"voterId"`
}

func (h *Handler) handleVerifyVoter(c echo.Context) error {
	ctx := c.Request().Context()
	account, _ := middleware.Requester(c)

	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "Malformed request body.")
	}

	profile, alreadyVerified, err := h.owner.VerifyVoter(ctx, account.ID, usecase.VerifyInput{
		VotingTopicID: req.VotingTopicID,
		WalletAddress: req.WalletAddress,
		VoterID:       req.VoterID,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	if alreadyVerified {
		return presenter.OK(c, profile, "Voter is already verified.")
	}
	return presenter.OK(c, profile, "Voter verified successfully.")
}

type approveRequest struct {
	Fullname      string `json:"fullname"`
	Email         string `json:"email"`
	Party         string `json:"party"`
	VotingTopicID string `json:"votingTopicId"`
}

func (h *Handler) handleApproveCandidate(c echo.Context) error {
	ctx := c.Request().Context()
	account, _ := middleware.Requester(c)

	var req approveRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequestMessage(c, "Malformed request body.")
	}

	candidateID, err := h.owner.ApproveCandidate(ctx, account.ID, usecase.ApproveInput{
		Fullname:      req.Fullname,
		Email:         req.Email,
		Party:         req.Party,
		VotingTopicID: req.VotingTopicID,
	})
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"candidateId": candidateID}, "Candidate approved successfully.")
}

type topicRequest struct {
	VotingTopicID string `json:"votingTopicId"`
}

func (h *Handler) bindTopic(c echo.Context) (string, error) {
	var req topicRequest
	if err := c.Bind(&req); err != nil {
		return "", domain.ValidationError{Reason: "Malformed request body."}
	}
	return req.VotingTopicID, nil
}

func (h *Handler) handleToggleVoting(c echo.Context) error {
	ctx := c.Request().Context()
	account, _ := middleware.Requester(c)

	topic, err := h.bindTopic(c)
	if err != nil {
		return presenter.Error(c, err)
	}

	enabled, err := h.owner.ToggleVotingPermission(ctx, account.ID, topic)
	if err != nil {
		return presenter.Error(c, err)
	}
	message := "Voting disabled."
	if enabled {
		message = "Voting enabled."
	}
	return presenter.OK(c, echo.Map{"votingPermission": enabled}, message)
}

func (h *Handler) handlePublishResult(c echo.Context) error {
	ctx := c.Request().Context()
	account, _ := middleware.Requester(c)

	topic, err := h.bindTopic(c)
	if err != nil {
		return presenter.Error(c, err)
	}

	result, err := h.owner.StorePublishedResult(ctx, account.ID, topic)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, result, "Voting result published.")
}

func (h *Handler) handleSyncTallies(c echo.Context) error {
	ctx := c.Request().Context()
	account, _ := middleware.Requester(c)

	topic, err := h.bindTopic(c)
	if err != nil {
		return presenter.Error(c, err)
	}

	updated, err := h.owner.SyncTallies(ctx, account.ID, topic)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, echo.Map{"updated": updated}, "Tallies synchronised with the contract.")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return c.JSON(http.StatusServiceUnavailable, presenter.Response{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Realtime events are not enabled.",
		})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan domain.Event)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Topics:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Topics),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case event, ok := <-output:
			if !ok {
				return nil
			}
			err := ws.WriteJSON(event)
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
