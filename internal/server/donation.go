package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	distributiondomain "github.com/xim/effekt-backend/internal/distribution/domain"
	donationdomain "github.com/xim/effekt-backend/internal/donation/domain"
	donordomain "github.com/xim/effekt-backend/internal/donor/domain"
	paymentdomain "github.com/xim/effekt-backend/internal/payment/domain"
	"go.uber.org/zap"
)

type registerDonationRequest struct {
	Donor  donordomain.RegisterDonorRequest `json:"donor"`
	Split  []distributiondomain.SplitLine   `json:"split"`
	Method int                              `json:"method"`
	Amount decimal.Decimal                  `json:"amount"`
}

type registerDonationResponse struct {
	KID        string `json:"kid"`
	PaymentURL string `json:"payment_url,omitempty"`
}

// RegisterDonation sets up everything a donor needs to pay: their donor
// record, a reference code bound to the requested split, and for online
// providers a payment order to redirect to. The donation row itself is
// created when the provider reports the money.
func (s *Server) RegisterDonation(c *gin.Context) {
	var req registerDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	switch req.Method {
	case paymentdomain.MethodBank, paymentdomain.MethodPayPal, paymentdomain.MethodVipps:
	default:
		AbortWithError(c, newValidationError("method", "unknown_method", "unknown payment method"))
		return
	}

	ctx := c.Request.Context()

	donorID, err := s.donorSvc.Ensure(ctx, req.Donor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	split := distributiondomain.Split(req.Split)
	if len(split) == 0 {
		split, err = s.standardSplit(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}
	}

	kid, err := s.distributionSvc.EnsureKID(ctx, split, donorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := registerDonationResponse{KID: kid}
	switch req.Method {
	case paymentdomain.MethodVipps, paymentdomain.MethodPayPal:
		if !req.Amount.IsPositive() {
			AbortWithError(c, newValidationError("amount", "invalid_amount", "amount must be positive"))
			return
		}
		client := paymentdomain.Client(s.vipps)
		if req.Method == paymentdomain.MethodPayPal {
			client = s.paypal
		}
		url, err := client.InitiateOrder(ctx, kid, req.Amount)
		if err != nil {
			s.log.Error("payment order initiation failed",
				zap.Int("method", req.Method),
				zap.String("kid", kid),
				zap.Error(err),
			)
			AbortWithError(c, err)
			return
		}
		resp.PaymentURL = url
	}

	c.JSON(http.StatusOK, resp)
}

type confirmDonationRequest struct {
	Timestamp *time.Time `json:"timestamp"`
}

func (s *Server) ConfirmDonation(c *gin.Context) {
	id, ok := donationIDParam(c)
	if !ok {
		return
	}

	var req confirmDonationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	timestamp := time.Now().UTC()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	if err := s.donationSvc.Confirm(c.Request.Context(), id, timestamp); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

func (s *Server) GetDonation(c *gin.Context) {
	id, ok := donationIDParam(c)
	if !ok {
		return
	}
	donation, err := s.donationSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, donation)
}

func (s *Server) ListDonations(c *gin.Context) {
	page, limit := pagination(c)
	resp, err := s.donationSvc.List(c.Request.Context(), donationdomain.ListFilter{
		KID:   c.Query("kid"),
		Donor: c.Query("donor"),
	}, page, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DonationTotal(c *gin.Context) {
	from, err := timeQuery(c, "from", time.Time{})
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_time", "from must be RFC 3339"))
		return
	}
	to, err := timeQuery(c, "to", time.Now().UTC())
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_time", "to must be RFC 3339"))
		return
	}

	agg, err := s.donationSvc.GetAggregateByTime(c.Request.Context(), from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (s *Server) DonationHistogram(c *gin.Context) {
	width := decimal.NewFromInt(500)
	if raw := strings.TrimSpace(c.Query("bucket")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || !parsed.IsPositive() {
			AbortWithError(c, newValidationError("bucket", "invalid_bucket", "bucket must be a positive number"))
			return
		}
		width = parsed
	}

	buckets, err := s.donationSvc.GetHistogramBySum(c.Request.Context(), width)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

func (s *Server) standardSplit(c *gin.Context) (distributiondomain.Split, error) {
	orgs, err := s.organizationSvc.GetStandardSplit(c.Request.Context())
	if err != nil {
		return nil, err
	}
	split := make(distributiondomain.Split, 0, len(orgs))
	for _, org := range orgs {
		split = append(split, distributiondomain.SplitLine{
			OrganizationID: org.ID,
			Share:          org.StdPercentageShare,
		})
	}
	return split, nil
}

func donationIDParam(c *gin.Context) (snowflake.ID, bool) {
	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || raw <= 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "donation id must be a positive integer"))
		return 0, false
	}
	return snowflake.ID(raw), true
}

func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	return page, limit
}

func timeQuery(c *gin.Context, key string, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, raw)
}
