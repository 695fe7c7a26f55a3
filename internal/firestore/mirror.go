// Package firestore mirrors roster documents into the legacy Firestore
// project so dashboards still reading it keep working. The mirror is
// best-effort: the worker retries failed writes, and the API never waits on
// it.
package firestore

import (
	"context"
	"fmt"
	"os"
	"strconv"

	fs "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"pickup/internal/roster"
)

const (
	studentsCollection = "students"
	systemCollection   = "system"
	classInfoDoc       = "classInfo"
)

// Mirror wraps the Firestore client. A nil mirror disables all writes.
type Mirror struct {
	client *fs.Client
}

// New builds a mirror from inline service-account JSON, falling back to a
// credentials file. Returns (nil, nil) when neither is configured.
func New(ctx context.Context, inlineJSON, credsFile string) (*Mirror, error) {
	var opts []option.ClientOption
	switch {
	case inlineJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(inlineJSON)))
	case credsFile != "":
		if _, err := os.Stat(credsFile); err != nil {
			return nil, nil
		}
		opts = append(opts, option.WithCredentialsFile(credsFile))
	default:
		return nil, nil
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: init app failed: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: init client failed: %w", err)
	}
	return &Mirror{client: client}, nil
}

// Enabled reports whether the mirror is configured.
func (m *Mirror) Enabled() bool {
	return m != nil && m.client != nil
}

// Close releases the underlying client.
func (m *Mirror) Close() error {
	if !m.Enabled() {
		return nil
	}
	return m.client.Close()
}

// SetStudent overwrites the student document.
func (m *Mirror) SetStudent(ctx context.Context, st roster.Student) error {
	if !m.Enabled() {
		return nil
	}
	_, err := m.client.Collection(studentsCollection).Doc(st.ID).Set(ctx, studentDoc(st))
	return err
}

// DeleteStudent removes the student document.
func (m *Mirror) DeleteStudent(ctx context.Context, id string) error {
	if !m.Enabled() {
		return nil
	}
	_, err := m.client.Collection(studentsCollection).Doc(id).Delete(ctx)
	return err
}

// SetClassInfo overwrites the system/classInfo document.
func (m *Mirror) SetClassInfo(ctx context.Context, slots map[string]roster.ClassSlot) error {
	if !m.Enabled() {
		return nil
	}
	doc := make(map[string]any, len(slots))
	for slot, cs := range slots {
		locations := make(map[string]string, len(cs.Locations))
		for id, name := range cs.Locations {
			locations[strconv.Itoa(id)] = name
		}
		doc[slot] = map[string]any{
			"startTime": cs.StartTime,
			"endTime":   cs.EndTime,
			"locations": locations,
		}
	}
	_, err := m.client.Collection(systemCollection).Doc(classInfoDoc).Set(ctx, doc)
	return err
}

func studentDoc(st roster.Student) map[string]any {
	doc := map[string]any{
		"name":               st.Name,
		"shortId":            st.ShortID,
		"notionPageId":       st.NotionPageID,
		"classDays":          st.ClassDays,
		"classTime":          st.ClassTime,
		"classTimes":         st.ClassTimes,
		"arrivalTime":        st.ArrivalTime,
		"departureTime":      st.DepartureTime,
		"arrivalLocation":    st.ArrivalLocation,
		"departureLocation":  st.DepartureLocation,
		"arrivalLocations":   st.ArrivalLocations,
		"departureLocations": st.DepartureLocations,
		"motherPhone":        st.MotherPhone,
		"fatherPhone":        st.FatherPhone,
		"studentPhone":       st.StudentPhone,
		"otherPhone":         st.OtherPhone,
		"arrivalStatus":      st.ArrivalStatus,
		"departureStatus":    st.DepartureStatus,
		"registrationDate":   st.RegistrationDate,
		"createdAt":          st.CreatedAt,
		"updatedAt":          st.UpdatedAt,
	}
	if st.IsActive != nil {
		doc["isActive"] = *st.IsActive
	}
	return doc
}
