package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/skyunix/goinspur/internal/models"
)

const (
	pathLogin   = "/urms/plugins/user/usermgr/login.ilf"
	pathSites   = "/urms/plugins/check/tcheckattendancesite/findForPhone.ilf"
	pathAction  = "/urms/plugins/check/tcheckattendance/create.ilf"
	pathHistory = "/urms/plugins/check/tcheckattendance/findPageForPhone.ilf"

	statusSuccess = "success"
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if strings.TrimSpace(string(s)) == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil {
		return fmt.Errorf("parse coordinate %q: %w", string(s), err)
	}
	*f = flexFloat(v)
	return nil
}

type loginResponse struct {
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result"`
	ErroInfo string          `json:"erroInfo"`
}

type loginUser struct {
	Phone    flexString `json:"PHONE"`
	UserID   flexString `json:"USER_ID"`
	UserName string     `json:"USER_NAME"`
}

type siteDTO struct {
	ID        flexString `json:"id"`
	Address   string     `json:"address"`
	Latitude  flexFloat  `json:"latitude"`
	Longitude flexFloat  `json:"longitude"`
}

type sitesResponse struct {
	AttendanceSites []siteDTO `json:"attendanceSites"`
}

func (r sitesResponse) sites() []models.Site {
	out := make([]models.Site, 0, len(r.AttendanceSites))
	for _, s := range r.AttendanceSites {
		out = append(out, models.Site{
			ID:        string(s.ID),
			Address:   s.Address,
			Latitude:  float64(s.Latitude),
			Longitude: float64(s.Longitude),
		})
	}
	return out
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type recordDTO struct {
	SignTime    string `json:"SIGNTIME"`
	SignInTime  string `json:"SIGNINTIME"`
	SignOutTime string `json:"SIGNOUTTIME"`
}

type historyResponse struct {
	DGPage []recordDTO `json:"dgpage"`
}

func (r historyResponse) records() []models.AttendanceRecord {
	out := make([]models.AttendanceRecord, 0, len(r.DGPage))
	for _, rec := range r.DGPage {
		out = append(out, models.AttendanceRecord{
			Date:    rec.SignTime,
			SignIn:  missingAsEmpty(rec.SignInTime),
			SignOut: missingAsEmpty(rec.SignOutTime),
		})
	}
	return out
}

func missingAsEmpty(v string) string {
	v = strings.TrimSpace(v)
	if v == "-" {
		return ""
	}
	return v
}
