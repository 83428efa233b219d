package domain

import (
	"math"
	"testing"
)

func TestDistanceKmKnownPair(t *testing.T) {
	// Paris -> London is roughly 344 km.
	paris := Point{Lat: 48.8566, Lon: 2.3522}
	london := Point{Lat: 51.5074, Lon: -0.1278}
	d := DistanceKm(paris, london)
	if d < 340 || d > 348 {
		t.Fatalf("DistanceKm(paris, london) = %.1f, want ~344", d)
	}
	if DistanceKm(paris, paris) != 0 {
		t.Fatalf("expected zero distance for identical points")
	}
}

func TestPointValid(t *testing.T) {
	cases := []struct {
		p    Point
		want bool
	}{
		{Point{Lat: 0, Lon: 0}, true},
		{Point{Lat: 90, Lon: 180}, true},
		{Point{Lat: 90.1, Lon: 0}, false},
		{Point{Lat: 0, Lon: -180.5}, false},
		{Point{Lat: math.NaN(), Lon: 0}, false},
		{Point{Lat: 0, Lon: math.Inf(1)}, false},
	}
	for _, c := range cases {
		if got := c.p.Valid(); got != c.want {
			t.Fatalf("%+v.Valid() = %v, want %v", c.p, got, c.want)
		}
	}
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	center := Point{Lat: 52.52, Lon: 13.405}
	minLat, maxLat, minLon, maxLon := BoundingBox(center, 5)

	// A point just under 5 km north must be inside the box.
	north := Point{Lat: center.Lat + 4.9/111.2, Lon: center.Lon}
	if north.Lat > maxLat {
		t.Fatalf("north point %.5f outside maxLat %.5f", north.Lat, maxLat)
	}
	if minLat >= center.Lat || minLon >= center.Lon || maxLon <= center.Lon {
		t.Fatalf("box does not surround center: %v %v %v %v", minLat, maxLat, minLon, maxLon)
	}
}

func TestIsPublisher(t *testing.T) {
	e := Event{ID: "l1", PublisherID: "u1"}
	if !e.IsPublisher(Recipient{ID: "u1"}) {
		t.Fatalf("expected u1 to be the publisher")
	}
	if e.IsPublisher(Recipient{ID: "u2"}) {
		t.Fatalf("u2 is not the publisher")
	}
	if (Event{}).IsPublisher(Recipient{}) {
		t.Fatalf("empty publisher id must never match")
	}
}
