// Package mgrs converts Military Grid Reference System coordinates to
// WGS84 latitude and longitude.
package mgrs

import (
	"math"
	"strconv"
	"strings"
)

// LatLon is a WGS84 position in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

const (
	k0      = 0.9996
	radius  = 6378137.0  // WGS84 semi-major axis
	eccSq   = 0.00669438 // WGS84 first eccentricity squared
	falseE  = 500000.0
	falseN  = 10000000.0
	cycleN  = 2000000.0
	square  = 100000.0
	bands   = "CDEFGHJKLMNPQRSTUVWX"
	rowSet  = "ABCDEFGHJKLMNPQRSTUV"
	maxZone = 60
)

// Column letters repeat every three zones.
var columnSets = [3]string{"STUVWXYZ", "ABCDEFGH", "JKLMNPQR"}

// Lowest northing of each latitude band, used to place the 100 km row
// letter in the right 2000 km cycle.
var minNorthing = map[byte]float64{
	'C': 1100000, 'D': 2000000, 'E': 2800000, 'F': 3700000, 'G': 4600000,
	'H': 5500000, 'J': 6400000, 'K': 7300000, 'L': 8200000, 'M': 9100000,
	'N': 0, 'P': 800000, 'Q': 1700000, 'R': 2600000, 'S': 3500000,
	'T': 4400000, 'U': 5300000, 'V': 6200000, 'W': 7000000, 'X': 7900000,
}

// ToLatLon parses an MGRS string such as "18SUJ2348306479" or
// "18S UJ 23483 06479" and returns the south-west corner of the square it
// names. Spaces are ignored and letters are case-insensitive. Polar (UPS)
// references and malformed input report false.
func ToLatLon(s string) (LatLon, bool) {
	zone, band, col, row, digits, ok := parse(s)
	if !ok {
		return LatLon{}, false
	}

	colIdx := strings.IndexByte(columnSets[zone%3], col)
	rowIdx := strings.IndexByte(rowSet, row)
	if colIdx < 0 || rowIdx < 0 {
		return LatLon{}, false
	}

	easting := float64(colIdx+1) * square
	offset := 0
	if zone%2 == 0 {
		offset = 5
	}
	northing := float64((rowIdx-offset+20)%20) * square
	for northing < minNorthing[band] {
		northing += cycleN
	}

	half := len(digits) / 2
	if half > 0 {
		e, err1 := strconv.Atoi(digits[:half])
		n, err2 := strconv.Atoi(digits[half:])
		if err1 != nil || err2 != nil {
			return LatLon{}, false
		}
		scale := math.Pow10(5 - half)
		easting += float64(e) * scale
		northing += float64(n) * scale
	}

	return utmToLatLon(zone, band >= 'N', easting, northing), true
}

func parse(s string) (zone int, band, col, row byte, digits string, ok bool) {
	s = strings.ToUpper(strings.ReplaceAll(s, " ", ""))

	i := 0
	for i < len(s) && i < 2 && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || len(s) < i+3 {
		return
	}
	zone, _ = strconv.Atoi(s[:i])
	if zone < 1 || zone > maxZone {
		return
	}

	band, col, row = s[i], s[i+1], s[i+2]
	if strings.IndexByte(bands, band) < 0 {
		return
	}

	digits = s[i+3:]
	if len(digits)%2 != 0 || len(digits) > 10 {
		return
	}
	for j := 0; j < len(digits); j++ {
		if digits[j] < '0' || digits[j] > '9' {
			return
		}
	}
	ok = true
	return
}

func utmToLatLon(zone int, north bool, easting, northing float64) LatLon {
	e1 := (1 - math.Sqrt(1-eccSq)) / (1 + math.Sqrt(1-eccSq))
	eccPrimeSq := eccSq / (1 - eccSq)

	x := easting - falseE
	y := northing
	if !north {
		y -= falseN
	}
	lonOrigin := float64((zone-1)*6-180+3) * math.Pi / 180

	m := y / k0
	mu := m / (radius * (1 - eccSq/4 - 3*eccSq*eccSq/64 - 5*eccSq*eccSq*eccSq/256))

	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu)

	sinPhi, cosPhi, tanPhi := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	n1 := radius / math.Sqrt(1-eccSq*sinPhi*sinPhi)
	t1 := tanPhi * tanPhi
	c1 := eccPrimeSq * cosPhi * cosPhi
	r1 := radius * (1 - eccSq) / math.Pow(1-eccSq*sinPhi*sinPhi, 1.5)
	d := x / (n1 * k0)

	lat := phi1 - (n1*tanPhi/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*eccPrimeSq)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*eccPrimeSq-3*c1*c1)*math.Pow(d, 6)/720)
	lon := (d -
		(1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*eccPrimeSq+24*t1*t1)*math.Pow(d, 5)/120) / cosPhi

	return LatLon{
		Lat: lat * 180 / math.Pi,
		Lon: (lonOrigin + lon) * 180 / math.Pi,
	}
}
