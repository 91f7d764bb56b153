// internal/orderid/orderid.go
package orderid

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/mahabubulhasibshawon/parcel-express/internal/region"
)

// Zone is the civil time zone every order ID is stamped in, whatever the device zone is.
const Zone = "Asia/Yangon"

// Digits yields the two random suffix digits. They reduce same-minute collisions; they do not prevent them.
type Digits func() (int, int)

type Generator struct {
	regions  *region.Table
	location *time.Location
	digits   Digits
}

func New(regions *region.Table, loc *time.Location, digits Digits) *Generator {
	if regions == nil {
		regions = region.DefaultTable()
	}
	if loc == nil {
		loc = CivilLocation()
	}
	if digits == nil {
		digits = RandomDigits()
	}
	return &Generator{regions: regions, location: loc, digits: digits}
}

// Generate builds PREFIX + yyyyMMddHHmm + D1 + D2 for an order whose pickup is at origin.
func (g *Generator) Generate(origin string, at time.Time) string {
	prefix := g.regions.Code(origin)
	civil := at.In(g.location)
	d1, d2 := g.digits()
	return fmt.Sprintf("%s%s%d%d", prefix, civil.Format("200601021504"), d1%10, d2%10)
}

// Region exposes the region code Generate would use for origin.
func (g *Generator) Region(origin string) string {
	return g.regions.Code(origin)
}

func (g *Generator) Location() *time.Location {
	return g.location
}

var (
	civilOnce sync.Once
	civilLoc  *time.Location
)

// CivilLocation loads Zone, falling back to a fixed +06:30 offset when tzdata is missing.
func CivilLocation() *time.Location {
	civilOnce.Do(func() {
		loc, err := time.LoadLocation(Zone)
		if err != nil {
			loc = time.FixedZone("MMT", 6*3600+30*60)
		}
		civilLoc = loc
	})
	return civilLoc
}

func RandomDigits() Digits {
	return func() (int, int) {
		return rand.IntN(10), rand.IntN(10)
	}
}

// FixedDigits is handy for tests and replays.
func FixedDigits(d1, d2 int) Digits {
	return func() (int, int) { return d1, d2 }
}
