package model

// TrainQuery は列車検索の入力。発駅・着駅ともに必須。
type TrainQuery struct {
	OriginCode      string
	DestinationCode string
}

// Location は駅名とCRSコードの組。
type Location struct {
	LocationName string `json:"locationName"`
	CRS          string `json:"crs"`
}

// TrainService は外部列車APIが返す1本の列車。読み取り専用として扱う。
type TrainService struct {
	Origin      []Location `json:"origin"`
	Destination []Location `json:"destination"`
	STD         string     `json:"std"`
	ETD         string     `json:"etd"`
	Platform    *string    `json:"platform,omitempty"`
	Operator    string     `json:"operator"`
}

// FirstOrigin は先頭の発駅を返す。発駅が空の場合はfalseを返す。
func (s TrainService) FirstOrigin() (Location, bool) {
	if len(s.Origin) == 0 {
		return Location{}, false
	}
	return s.Origin[0], true
}

// FirstDestination は先頭の着駅を返す。着駅が空の場合はfalseを返す。
func (s TrainService) FirstDestination() (Location, bool) {
	if len(s.Destination) == 0 {
		return Location{}, false
	}
	return s.Destination[0], true
}

// PlatformName はホーム番号を返す。未確定（nullまたは空）の場合は空文字列。
func (s TrainService) PlatformName() string {
	if s.Platform == nil {
		return ""
	}
	return *s.Platform
}

// TrainQueryResult は列車検索APIのレスポンス全体。
type TrainQueryResult struct {
	LocationName       string         `json:"locationName"`
	FilterLocationName string         `json:"filterLocationName"`
	CRS                string         `json:"crs"`
	TrainServices      []TrainService `json:"trainServices"`
}
