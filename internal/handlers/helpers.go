package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/duadua/marketplace/internal/mykafka"
	"github.com/duadua/marketplace/internal/slugs"
	"github.com/duadua/marketplace/internal/util"
)

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func pageParams(c echo.Context) (page int, offset int, limit int) {
	page = util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit = util.Calculate(page, size)
	return page, offset, limit
}

func listResponse(c echo.Context, items any, page, limit int, total int64) error {
	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": util.NewMeta(page, limit, total),
	})
}

// movedPermanently answers a retired-slug lookup with a 301 pointing at the
// entity's current location.
func movedPermanently(c echo.Context, pathPrefix string, moved *slugs.ErrMoved) error {
	location := pathPrefix + "/" + moved.CurrentSlug
	c.Response().Header().Set("Location", location)
	return c.JSON(http.StatusMovedPermanently, map[string]any{
		"slug":     moved.CurrentSlug,
		"location": location,
	})
}

// publish sends a domain event to kafka, best effort. A nil producer drops the
// event.
func publish(c echo.Context, producer *mykafka.Producer, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := producer.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

// randomDigits returns n crypto-random decimal digits, used for OTP codes.
func randomDigits(n int) (string, error) {
	out := make([]byte, n)
	for i := range out {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		out[i] = byte('0' + v.Int64())
	}
	return string(out), nil
}

// randomToken returns a hex token for password-reset links.
func randomToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// orderReference builds a payment reference of the form ORD-XXXXXXXXXX-<unix>.
func orderReference() (string, error) {
	buf := make([]byte, 10)
	for i := range buf {
		v, err := rand.Int(rand.Reader, big.NewInt(int64(len(referenceAlphabet))))
		if err != nil {
			return "", fmt.Errorf("failed to generate reference: %w", err)
		}
		buf[i] = referenceAlphabet[v.Int64()]
	}
	return fmt.Sprintf("ORD-%s-%d", buf, time.Now().Unix()), nil
}
