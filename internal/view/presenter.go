package view

import (
	"strings"

	"github.com/hitoshi/trainchecker/internal/model"
)

// StatusClass は発車予定時刻（ETD）の表示区分。
type StatusClass string

const (
	StatusOK   StatusClass = "ok"
	StatusBad  StatusClass = "bad"
	StatusInfo StatusClass = "info"
)

// StatusClassFor はETDの文言から表示区分を決める。
// "On time"は正常、"Delayed"または"Cancelled"を含むものは異常、それ以外は情報扱い。
func StatusClassFor(etd string) StatusClass {
	switch {
	case etd == "On time":
		return StatusOK
	case etd == "Delayed", strings.Contains(etd, "Cancelled"):
		return StatusBad
	default:
		return StatusInfo
	}
}

// ServiceRow は列車1本分の表示内容。
type ServiceRow struct {
	Operator  string
	ETD       string
	Status    StatusClass
	Route     string
	Departure string
}

// ResultView は検索結果の表示内容。
type ResultView struct {
	Header string
	Rows   []ServiceRow
}

// NewResultView は検索結果をビューモデルに変換する。
func NewResultView(r *model.TrainQueryResult) *ResultView {
	if r == nil {
		return nil
	}
	rows := make([]ServiceRow, 0, len(r.TrainServices))
	for _, svc := range r.TrainServices {
		rows = append(rows, NewServiceRow(svc))
	}
	return &ResultView{
		Header: "Train Services from " + r.LocationName + " to " + r.FilterLocationName,
		Rows:   rows,
	}
}

// NewServiceRow は列車1本をビューモデルに変換する。
func NewServiceRow(svc model.TrainService) ServiceRow {
	return ServiceRow{
		Operator:  svc.Operator,
		ETD:       svc.ETD,
		Status:    StatusClassFor(svc.ETD),
		Route:     routeLine(svc),
		Departure: departureLine(svc),
	}
}

// routeLine は "駅名 (CRS) → 駅名 (CRS)" を返す。発着駅は先頭の要素を使う。
func routeLine(svc model.TrainService) string {
	origin, ok := svc.FirstOrigin()
	if !ok {
		return ""
	}
	dest, ok := svc.FirstDestination()
	if !ok {
		return ""
	}
	return formatLocation(origin) + " → " + formatLocation(dest)
}

func formatLocation(l model.Location) string {
	return l.LocationName + " (" + l.CRS + ")"
}

// departureLine はホームが決まっていれば "STD (Platform N)"、なければSTDのみを返す。
func departureLine(svc model.TrainService) string {
	if p := svc.PlatformName(); p != "" {
		return svc.STD + " (Platform " + p + ")"
	}
	return svc.STD
}
