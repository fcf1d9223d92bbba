package hue

// CLIP v2 resource models, trimmed to the fields the daemon reads.

// ResourceRef points at another CLIP resource.
type ResourceRef struct {
	RID   string `json:"rid"`
	RType string `json:"rtype"`
}

// Light is a CLIP v2 light resource.
type Light struct {
	ID       string      `json:"id"`
	IDV1     string      `json:"id_v1,omitempty"`
	Owner    ResourceRef `json:"owner"`
	Metadata struct {
		Name      string `json:"name"`
		Archetype string `json:"archetype"`
	} `json:"metadata"`
	On *struct {
		On bool `json:"on"`
	} `json:"on,omitempty"`
	Dimming *struct {
		Brightness  float64  `json:"brightness"`
		MinDimLevel *float64 `json:"min_dim_level,omitempty"`
	} `json:"dimming,omitempty"`
	ColorTemperature *struct {
		Mirek       *int `json:"mirek"`
		MirekValid  bool `json:"mirek_valid"`
		MirekSchema *struct {
			MirekMinimum int `json:"mirek_minimum"`
			MirekMaximum int `json:"mirek_maximum"`
		} `json:"mirek_schema,omitempty"`
	} `json:"color_temperature,omitempty"`
}

// GroupedLight is the broadcast control channel of a room or zone.
type GroupedLight struct {
	ID    string      `json:"id"`
	IDV1  string      `json:"id_v1,omitempty"`
	Owner ResourceRef `json:"owner"`
	On    *struct {
		On bool `json:"on"`
	} `json:"on,omitempty"`
	Dimming *struct {
		Brightness float64 `json:"brightness"`
	} `json:"dimming,omitempty"`
}

// Group is a room or zone: the named container owning a grouped_light
// service and the member devices/lights.
type Group struct {
	ID       string `json:"id"`
	Metadata struct {
		Name string `json:"name"`
	} `json:"metadata"`
	Children []ResourceRef `json:"children"`
	Services []ResourceRef `json:"services"`
}

// Device owns per-function services; light members of a room are often
// reachable only through their device's service list.
type Device struct {
	ID       string        `json:"id"`
	Services []ResourceRef `json:"services"`
}
