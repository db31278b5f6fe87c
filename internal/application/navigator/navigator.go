// Package navigator tracks which screen is active and builds its view model.
package navigator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
)

type Screen string

const (
	ScreenHome          Screen = "home"
	ScreenAboutApp      Screen = "about_app"
	ScreenAboutDiseases Screen = "about_diseases"
	ScreenAnalyzer      Screen = "analyzer"
	ScreenGallery       Screen = "gallery"
)

var ErrUnknownScreen = errors.New("unknown screen")

var screens = []Screen{ScreenHome, ScreenAboutApp, ScreenAboutDiseases, ScreenAnalyzer, ScreenGallery}

// ParseScreen accepts screen names in any case, so "ABOUT_APP" works too.
func ParseScreen(s string) (Screen, error) {
	name := Screen(strings.ToLower(strings.TrimSpace(s)))
	for _, sc := range screens {
		if sc == name {
			return sc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownScreen, s)
}

// Gallery is the read side of the gallery store.
type Gallery interface {
	Count() int
	Find(q gallery.Query) ([]*gallery.Item, error)
	Stats() gallery.Stats
}

// SessionCounter reports live analyzer sessions.
type SessionCounter interface {
	Count() int
}

type HomeView struct {
	GalleryCount int `json:"galleryCount"`
}

type AnalyzerView struct {
	Sessions int `json:"sessions"`
}

type GalleryView struct {
	Items []*gallery.Item `json:"items"`
	Stats gallery.Stats   `json:"stats"`
}

// View is the model for the active screen; exactly one section is set.
type View struct {
	Screen        Screen        `json:"screen"`
	ShowBack      bool          `json:"showBack"`
	Home          *HomeView     `json:"home,omitempty"`
	AboutApp      *AppInfo      `json:"aboutApp,omitempty"`
	AboutDiseases []Disease     `json:"aboutDiseases,omitempty"`
	Analyzer      *AnalyzerView `json:"analyzer,omitempty"`
	Gallery       *GalleryView  `json:"gallery,omitempty"`
}

type Navigator struct {
	gallery  Gallery
	sessions SessionCounter
	catalog  *Catalog

	mu      sync.RWMutex
	current Screen
}

func New(g Gallery, sessions SessionCounter, catalog *Catalog) *Navigator {
	return &Navigator{gallery: g, sessions: sessions, catalog: catalog, current: ScreenHome}
}

func (n *Navigator) Current() Screen {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

// Navigate switches screens. Every screen is reachable from every other.
func (n *Navigator) Navigate(s Screen) error {
	if _, err := ParseScreen(string(s)); err != nil {
		return err
	}
	n.mu.Lock()
	n.current = s
	n.mu.Unlock()
	return nil
}

func (n *Navigator) Catalog() *Catalog { return n.catalog }

// View builds the model for the active screen. q only applies to the gallery screen.
func (n *Navigator) View(q gallery.Query) (View, error) {
	s := n.Current()
	v := View{Screen: s, ShowBack: s != ScreenHome}

	switch s {
	case ScreenHome:
		v.Home = &HomeView{GalleryCount: n.gallery.Count()}
	case ScreenAboutApp:
		app := n.catalog.App
		v.AboutApp = &app
	case ScreenAboutDiseases:
		v.AboutDiseases = append([]Disease{}, n.catalog.Diseases...)
	case ScreenAnalyzer:
		count := 0
		if n.sessions != nil {
			count = n.sessions.Count()
		}
		v.Analyzer = &AnalyzerView{Sessions: count}
	case ScreenGallery:
		items, err := n.gallery.Find(q)
		if err != nil {
			return View{}, err
		}
		v.Gallery = &GalleryView{Items: items, Stats: n.gallery.Stats()}
	}
	return v, nil
}
