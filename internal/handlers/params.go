package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"nightcircle/internal/models"
)

const (
	localUserID   = "user_id"
	localUsername = "username"
)

func currentUser(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

func currentUsername(c *fiber.Ctx) string {
	name, _ := c.Locals(localUsername).(string)
	return name
}

// queryPoint reads lat/lng query parameters. ok is false when either is
// missing; err is set when present but malformed.
func queryPoint(c *fiber.Ctx) (p models.Point, ok bool, err error) {
	latRaw, lngRaw := c.Query("lat"), c.Query("lng")
	if latRaw == "" || lngRaw == "" {
		return p, false, nil
	}
	if p.Lat, err = strconv.ParseFloat(latRaw, 64); err != nil {
		return p, false, err
	}
	if p.Lng, err = strconv.ParseFloat(lngRaw, 64); err != nil {
		return p, false, err
	}
	return p, true, nil
}
