package domain

// Default view center used when no override is given.
var DefaultCenter = GeoPoint{Lat: 39.925018, Lon: 32.836956}

// ViewOptions configure the map surface.
type ViewOptions struct {
	Center            GeoPoint        `json:"center"`
	Zoom              int             `json:"zoom"`
	MinZoom           int             `json:"min_zoom"`
	MaxZoom           int             `json:"max_zoom"`
	BackgroundColor   string          `json:"background_color"`
	MapTypeID         string          `json:"map_type_id"` // roadmap, satellite, hybrid, terrain
	Draggable         bool            `json:"draggable"`
	KeyboardShortcuts bool            `json:"keyboard_shortcuts"`
	ClickableIcons    bool            `json:"clickable_icons"`
	Controls          map[string]bool `json:"controls"`
}

// ViewOverrides holds caller-provided view keys. Nil fields keep the default.
type ViewOverrides struct {
	Center            *GeoPoint       `json:"center,omitempty" mapstructure:"center"`
	Zoom              *int            `json:"zoom,omitempty" mapstructure:"zoom"`
	MinZoom           *int            `json:"min_zoom,omitempty" mapstructure:"min_zoom"`
	MaxZoom           *int            `json:"max_zoom,omitempty" mapstructure:"max_zoom"`
	BackgroundColor   *string         `json:"background_color,omitempty" mapstructure:"background_color"`
	MapTypeID         *string         `json:"map_type_id,omitempty" mapstructure:"map_type_id"`
	Draggable         *bool           `json:"draggable,omitempty" mapstructure:"draggable"`
	KeyboardShortcuts *bool           `json:"keyboard_shortcuts,omitempty" mapstructure:"keyboard_shortcuts"`
	ClickableIcons    *bool           `json:"clickable_icons,omitempty" mapstructure:"clickable_icons"`
	Controls          map[string]bool `json:"controls,omitempty" mapstructure:"controls"`
}

// APIOptions configure the provider SDK loader.
type APIOptions struct {
	Version   string   `json:"version"`
	Language  string   `json:"language"`
	Region    string   `json:"region"`
	Libraries []string `json:"libraries"`
}

// SurfaceConfig is everything a provider needs to build a surface.
type SurfaceConfig struct {
	APIKey        string      `json:"api_key"`
	HostElementID string      `json:"host_element_id"`
	Append        bool        `json:"append"` // create a child element inside the host
	View          ViewOptions `json:"view"`
	API           APIOptions  `json:"api"`
}

// InitOptions are the parameters of MapSession.Init.
type InitOptions struct {
	APIKey           string         `json:"api_key,omitempty"`
	HostElementID    string         `json:"host_element_id,omitempty"`
	Append           bool           `json:"append,omitempty"`
	CreateInitMarker bool           `json:"create_init_marker"`
	View             *ViewOverrides `json:"view,omitempty"`
	API              *APIOptions    `json:"api,omitempty"`
}

func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		Center:            DefaultCenter,
		Zoom:              13,
		MinZoom:           2,
		MaxZoom:           18,
		BackgroundColor:   "#f8f8f8",
		MapTypeID:         "roadmap",
		Draggable:         true,
		KeyboardShortcuts: false,
		ClickableIcons:    false,
		Controls: map[string]bool{
			"fullscreen":  false,
			"street_view": false,
			"zoom":        false,
			"map_type":    false,
			"rotate":      false,
			"scale":       false,
			"pan":         true,
		},
	}
}

func DefaultAPIOptions() APIOptions {
	return APIOptions{
		Version:   "weekly",
		Language:  "tr",
		Region:    "TR",
		Libraries: []string{"places"},
	}
}

// Merge applies o on top of v. Keys set in o win.
func (v ViewOptions) Merge(o *ViewOverrides) ViewOptions {
	out := v
	out.Controls = make(map[string]bool, len(v.Controls))
	for k, on := range v.Controls {
		out.Controls[k] = on
	}
	if o == nil {
		return out
	}
	if o.Center != nil {
		out.Center = *o.Center
	}
	if o.Zoom != nil {
		out.Zoom = *o.Zoom
	}
	if o.MinZoom != nil {
		out.MinZoom = *o.MinZoom
	}
	if o.MaxZoom != nil {
		out.MaxZoom = *o.MaxZoom
	}
	if o.BackgroundColor != nil {
		out.BackgroundColor = *o.BackgroundColor
	}
	if o.MapTypeID != nil {
		out.MapTypeID = *o.MapTypeID
	}
	if o.Draggable != nil {
		out.Draggable = *o.Draggable
	}
	if o.KeyboardShortcuts != nil {
		out.KeyboardShortcuts = *o.KeyboardShortcuts
	}
	if o.ClickableIcons != nil {
		out.ClickableIcons = *o.ClickableIcons
	}
	for k, on := range o.Controls {
		out.Controls[k] = on
	}
	return out
}

// Merge applies the non-empty fields of o on top of a.
func (a APIOptions) Merge(o *APIOptions) APIOptions {
	out := a
	out.Libraries = append([]string(nil), a.Libraries...)
	if o == nil {
		return out
	}
	if o.Version != "" {
		out.Version = o.Version
	}
	if o.Language != "" {
		out.Language = o.Language
	}
	if o.Region != "" {
		out.Region = o.Region
	}
	if o.Libraries != nil {
		out.Libraries = append([]string(nil), o.Libraries...)
	}
	return out
}

const defaultMarkerSize = 48

// DefaultMarkerOptions returns the attributes used for fields a caller
// leaves empty.
func DefaultMarkerOptions() MarkerOptions {
	center := DefaultCenter
	return MarkerOptions{
		Position: &center,
		Title:    "Marker Title",
		Label: &MarkerLabel{
			Text:       "Marker Label",
			Color:      "#fff",
			FontSize:   "13px",
			FontWeight: "400",
			FontFamily: `"Red Hat Display", sans-serif`,
		},
		Icon: &MarkerIcon{
			URL:         "/content/marker.png",
			Size:        defaultMarkerSize,
			Anchor:      Pixel{X: defaultMarkerSize / 2, Y: defaultMarkerSize},
			LabelOrigin: Pixel{X: defaultMarkerSize / 2, Y: -(defaultMarkerSize / 3)},
		},
		Animation: "DROP",
	}
}

// WithDefaults fills every empty field of o from DefaultMarkerOptions.
func (o MarkerOptions) WithDefaults() MarkerOptions {
	def := DefaultMarkerOptions()
	out := o
	if out.Position == nil {
		out.Position = def.Position
	} else {
		p := *out.Position
		out.Position = &p
	}
	if out.Title == "" {
		out.Title = def.Title
	}
	if out.Label == nil {
		out.Label = def.Label
	} else {
		l := *out.Label
		if l.Color == "" {
			l.Color = def.Label.Color
		}
		if l.FontSize == "" {
			l.FontSize = def.Label.FontSize
		}
		if l.FontWeight == "" {
			l.FontWeight = def.Label.FontWeight
		}
		if l.FontFamily == "" {
			l.FontFamily = def.Label.FontFamily
		}
		out.Label = &l
	}
	if out.Icon == nil {
		out.Icon = def.Icon
	}
	if out.Animation == "" {
		out.Animation = def.Animation
	}
	return out
}
