package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	service "github.com/okian/racecheck/internal/app"
	"github.com/okian/racecheck/internal/adapters/repository"
	"github.com/okian/racecheck/internal/domain/model"
	"github.com/okian/racecheck/internal/domain/racecheck"
	"github.com/okian/racecheck/internal/domain/types"
	"github.com/okian/racecheck/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const feed = `SEXO|NOMBRE|CHIP|DORSAL|MODALIDAD|CATEGORIA|TIEMPO
M|Juan|c1|7|42K|M-Elite|02:30:00
F|Ana|c2|8|42K|F-Elite|02:45:00
M|Pedro|c3|12|42K|M-Elite|02:20:00
M|Luis|c4|9|21K|M-Libre|01:20:00
M|Raul|c5|10|21K|M-Veterano|01:10:00
`

func input() service.EventInput {
	return service.EventInput{
		Name: "Maratón de Otoño",
		Date: time.Date(2024, 10, 20, 8, 0, 0, 0, time.UTC),
		Modalities: []racecheck.Modality{
			{Name: "42K", Categories: []racecheck.Category{
				{Name: "Elite Masc", MatchsWith: "M-Elite"},
				{Name: "Elite Fem", MatchsWith: "F-Elite"},
			}},
			{Name: "21K", Categories: []racecheck.Category{{Name: "Libre", MatchsWith: "M-Libre"}}},
		},
		Genders: []racecheck.Gender{
			{Name: "Masculino", MatchsWith: "M"},
			{Name: "Femenino", MatchsWith: "F"},
		},
	}
}

func startService(opts ...service.Option) *service.Service {
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func stopService(svc *service.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = svc.Stop(ctx)
}

// waitImported polls until the stored feed of id classifies total lines.
func waitImported(svc *service.Service, id string, total int) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c, err := svc.Classification(context.Background(), id)
		if err == nil && c.Total == total {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(8))

		Convey("Then uploads are refused before Start", func() {
			_, err := svc.SubmitResults(ctx, "x", "feed.racecheck", []byte(feed))
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats(ctx).Started, ShouldBeFalse)
		})

		Convey("When started twice and stopped twice", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			st := svc.GetStats(ctx)
			So(st.Started, ShouldBeTrue)
			So(st.WorkerCount, ShouldEqual, 2)
			So(st.QueueCapacity, ShouldEqual, 8)

			So(svc.Stop(ctx), ShouldBeNil)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then it reports stopped", func() {
				So(svc.GetStats(ctx).Started, ShouldBeFalse)
			})
		})
	})
}

func TestService_Events(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
		svc := service.New(service.WithClock(func() time.Time { return now }))

		Convey("When an event is created", func() {
			e, err := svc.CreateEvent(ctx, input())
			So(err, ShouldBeNil)

			Convey("Then it is stored with an id and timestamps", func() {
				So(e.ID, ShouldNotBeEmpty)
				So(e.CreatedAt, ShouldEqual, now)
				got, err := svc.GetEvent(ctx, e.ID)
				So(err, ShouldBeNil)
				So(got.Name, ShouldEqual, "Maratón de Otoño")
				So(got.Modalities, ShouldHaveLength, 2)

				list, err := svc.ListEvents(ctx)
				So(err, ShouldBeNil)
				So(list, ShouldHaveLength, 1)
				So(svc.GetStats(ctx).Events, ShouldEqual, 1)
			})

			Convey("When its configuration is replaced", func() {
				in := input()
				updated, err := svc.UpdateConfig(ctx, e.ID, in.Modalities[:1], nil)

				Convey("Then the new configuration is stored", func() {
					So(err, ShouldBeNil)
					So(updated.Modalities, ShouldHaveLength, 1)
					So(updated.Genders, ShouldBeEmpty)
					got, _ := svc.GetEvent(ctx, e.ID)
					So(got.Modalities, ShouldHaveLength, 1)
				})
			})

			Convey("Then an invalid configuration is rejected", func() {
				_, err := svc.UpdateConfig(ctx, e.ID, []racecheck.Modality{{Name: ""}}, nil)
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})

			Convey("When it is deleted", func() {
				So(svc.DeleteEvent(ctx, e.ID), ShouldBeNil)

				Convey("Then it is gone", func() {
					_, err := svc.GetEvent(ctx, e.ID)
					So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
					So(errors.Is(svc.DeleteEvent(ctx, e.ID), repository.ErrNotFound), ShouldBeTrue)
				})
			})
		})

		Convey("Then an event without a name is rejected", func() {
			in := input()
			in.Name = "  "
			_, err := svc.CreateEvent(ctx, in)
			So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
		})

		Convey("Then unknown events are not found", func() {
			_, err := svc.UpdateConfig(ctx, "missing", nil, nil)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Import(t *testing.T) {
	Convey("Given a started service with an event", t, func() {
		ctx := context.Background()
		svc := startService(service.WithWorkerCount(2))
		defer stopService(svc)
		e, err := svc.CreateEvent(ctx, input())
		So(err, ShouldBeNil)

		Convey("When a feed is uploaded", func() {
			ack, err := svc.SubmitResults(ctx, e.ID, "results.racecheck", []byte(feed))
			So(err, ShouldBeNil)
			So(ack.Status, ShouldEqual, types.StatusAccepted)
			So(ack.JobID, ShouldNotBeEmpty)
			So(ack.Checksum, ShouldHaveLength, 64)
			So(waitImported(svc, e.ID, 5), ShouldBeTrue)

			Convey("Then the feed is stored on the event", func() {
				got, _ := svc.GetEvent(ctx, e.ID)
				So(got.ResultsFile, ShouldEqual, "results.racecheck")
				So(got.Results, ShouldEqual, feed)
			})

			Convey("Then the classification reports missing categories", func() {
				c, err := svc.Classification(ctx, e.ID)
				So(err, ShouldBeNil)
				So(c.Valid, ShouldHaveLength, 4)
				So(c.Invalid, ShouldHaveLength, 1)
				missing, err := svc.MissingCategories(ctx, e.ID)
				So(err, ShouldBeNil)
				So(missing, ShouldResemble, []string{"M-Veterano"})
			})

			Convey("Then results are ranked per modality", func() {
				res, err := svc.Results(ctx, e.ID, "")
				So(err, ShouldBeNil)
				So(res.Modalities, ShouldHaveLength, 2)
				names := []string{}
				for _, r := range res.Modalities[0].Runners {
					names = append(names, fmt.Sprintf("%s:%d/%d/%d", r.Name, r.PosGeneral, r.PosCat, r.PosSexo))
				}
				So(names, ShouldResemble, []string{"Pedro:1/1/1", "Juan:2/2/2", "Ana:3/1/1"})

				only, err := svc.Results(ctx, e.ID, "21K")
				So(err, ShouldBeNil)
				So(only.Modalities, ShouldHaveLength, 1)
				So(only.Modalities[0].Runners[0].Name, ShouldEqual, "Luis")
			})

			Convey("Then an unknown modality is rejected", func() {
				_, err := svc.Results(ctx, e.ID, "5K")
				So(errors.Is(err, service.ErrUnknownModality), ShouldBeTrue)
			})

			Convey("Then a ticket is found by dorsal", func() {
				tk, err := svc.Ticket(ctx, e.ID, "007", "")
				So(err, ShouldBeNil)
				So(tk.Name, ShouldEqual, "Juan")
				So(tk.Modality, ShouldEqual, "42K")
				So(tk.PosGeneral, ShouldEqual, 2)
				So(tk.EventName, ShouldEqual, e.Name)

				_, err = svc.Ticket(ctx, e.ID, "7", "21K")
				So(errors.Is(err, service.ErrRunnerNotFound), ShouldBeTrue)

				_, err = svc.Ticket(ctx, e.ID, "10", "")
				So(errors.Is(err, service.ErrRunnerNotFound), ShouldBeTrue)
			})

			Convey("Then results export as a workbook", func() {
				var buf bytes.Buffer
				So(svc.ExportResults(ctx, e.ID, &buf), ShouldBeNil)
				f, err := excelize.OpenReader(&buf)
				So(err, ShouldBeNil)
				defer f.Close()
				So(f.GetSheetList(), ShouldResemble, []string{"42K", "21K"})
			})

			Convey("Then the same upload again is a duplicate", func() {
				ack, err := svc.SubmitResults(ctx, e.ID, "results.racecheck", []byte(feed))
				So(err, ShouldBeNil)
				So(ack.Duplicate, ShouldBeTrue)
				So(ack.Status, ShouldEqual, types.StatusDuplicate)
			})

			Convey("When the configuration changes", func() {
				in := input()
				in.Genders = in.Genders[:1]
				_, err := svc.UpdateConfig(ctx, e.ID, in.Modalities, in.Genders)
				So(err, ShouldBeNil)

				Convey("Then the stored feed is re-ranked", func() {
					res, err := svc.Results(ctx, e.ID, "42K")
					So(err, ShouldBeNil)
					So(res.Modalities[0].Runners, ShouldHaveLength, 2)
				})
			})
		})

		Convey("Then a preview classifies without storing", func() {
			c, err := svc.Preview(ctx, e.ID, []byte(feed))
			So(err, ShouldBeNil)
			So(c.Total, ShouldEqual, 5)
			got, _ := svc.GetEvent(ctx, e.ID)
			So(got.Results, ShouldBeEmpty)
		})

		Convey("Then invalid uploads are rejected", func() {
			_, err := svc.SubmitResults(ctx, e.ID, "results.csv", []byte(feed))
			So(errors.Is(err, service.ErrInvalidUpload), ShouldBeTrue)

			_, err = svc.SubmitResults(ctx, e.ID, "results.racecheck", nil)
			So(errors.Is(err, service.ErrInvalidUpload), ShouldBeTrue)

			_, err = svc.SubmitResults(ctx, e.ID, "results.racecheck", []byte{0xff, 0xfe, 0x00})
			So(errors.Is(err, service.ErrInvalidUpload), ShouldBeTrue)

			_, err = svc.SubmitResults(ctx, "missing", "results.racecheck", []byte(feed))
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then the extension check ignores case", func() {
			_, err := svc.SubmitResults(ctx, e.ID, "RESULTS.RACECHECK", []byte(feed))
			So(err, ShouldBeNil)
		})
	})

	Convey("Given a small upload limit", t, func() {
		ctx := context.Background()
		svc := startService(service.WithMaxUploadBytes(16))
		defer stopService(svc)
		e, err := svc.CreateEvent(ctx, input())
		So(err, ShouldBeNil)

		Convey("Then larger uploads are rejected", func() {
			_, err := svc.SubmitResults(ctx, e.ID, "r.racecheck", []byte(strings.Repeat("x", 17)))
			So(errors.Is(err, service.ErrUploadTooLarge), ShouldBeTrue)
			_, err = svc.Preview(ctx, e.ID, []byte(strings.Repeat("x", 17)))
			So(errors.Is(err, service.ErrUploadTooLarge), ShouldBeTrue)
		})
	})
}

func TestService_ImportOrder(t *testing.T) {
	Convey("Given eight workers and a hundred events", t, func() {
		ctx := context.Background()
		store := repository.NewInMemoryStore()
		svc := startService(service.WithStore(store), service.WithWorkerCount(8), service.WithQueueSize(1024))

		ids := make([]string, 100)
		for i := range ids {
			e, err := svc.CreateEvent(ctx, input())
			So(err, ShouldBeNil)
			ids[i] = e.ID
		}

		Convey("When three feeds are uploaded back to back to each event", func() {
			for _, id := range ids {
				for n := 1; n <= 3; n++ {
					raw := fmt.Sprintf("%s;%d\n", feed, n)
					_, err := svc.SubmitResults(ctx, id, fmt.Sprintf("x%d.racecheck", n), []byte(raw))
					So(err, ShouldBeNil)
				}
			}
			stopService(svc)

			Convey("Then every event keeps the last upload", func() {
				stale := 0
				for _, id := range ids {
					e, err := store.Get(ctx, id)
					So(err, ShouldBeNil)
					if e.ResultsFile != "x3.racecheck" {
						stale++
					}
				}
				So(stale, ShouldEqual, 0)
			})
		})
	})
}

func TestService_Reupload(t *testing.T) {
	const otherFeed = "HEADER\nM|Solo|c9|99|42K|M-Elite|02:00:00\n"

	Convey("Given an event that imported feed A and then feed B", t, func() {
		ctx := context.Background()
		svc := startService(service.WithWorkerCount(2))
		defer stopService(svc)
		e, err := svc.CreateEvent(ctx, input())
		So(err, ShouldBeNil)

		_, err = svc.SubmitResults(ctx, e.ID, "a.racecheck", []byte(feed))
		So(err, ShouldBeNil)
		So(waitImported(svc, e.ID, 5), ShouldBeTrue)
		_, err = svc.SubmitResults(ctx, e.ID, "b.racecheck", []byte(otherFeed))
		So(err, ShouldBeNil)
		So(waitImported(svc, e.ID, 1), ShouldBeTrue)

		Convey("When feed A is uploaded again", func() {
			ack, err := svc.SubmitResults(ctx, e.ID, "a.racecheck", []byte(feed))

			Convey("Then it is accepted and replaces feed B", func() {
				So(err, ShouldBeNil)
				So(ack.Duplicate, ShouldBeFalse)
				So(ack.Status, ShouldEqual, types.StatusAccepted)
				So(waitImported(svc, e.ID, 5), ShouldBeTrue)
			})
		})

		Convey("When feed B is uploaded again", func() {
			ack, err := svc.SubmitResults(ctx, e.ID, "b.racecheck", []byte(otherFeed))

			Convey("Then it is a duplicate", func() {
				So(err, ShouldBeNil)
				So(ack.Duplicate, ShouldBeTrue)
			})
		})

		Convey("When the event is deleted", func() {
			So(svc.GetStats(ctx).DedupeEntries, ShouldEqual, 1)
			So(svc.DeleteEvent(ctx, e.ID), ShouldBeNil)

			Convey("Then its upload is forgotten", func() {
				So(svc.GetStats(ctx).DedupeEntries, ShouldEqual, 0)
			})
		})
	})

	Convey("Given feeds A, B and A submitted back to back", t, func() {
		ctx := context.Background()
		store := repository.NewInMemoryStore()
		svc := startService(service.WithStore(store), service.WithWorkerCount(4))
		e, err := svc.CreateEvent(ctx, input())
		So(err, ShouldBeNil)

		_, err = svc.SubmitResults(ctx, e.ID, "a1.racecheck", []byte(feed))
		So(err, ShouldBeNil)
		_, err = svc.SubmitResults(ctx, e.ID, "b.racecheck", []byte(otherFeed))
		So(err, ShouldBeNil)
		ack, err := svc.SubmitResults(ctx, e.ID, "a2.racecheck", []byte(feed))
		So(err, ShouldBeNil)
		stopService(svc)

		Convey("Then the last one is accepted and stored", func() {
			So(ack.Duplicate, ShouldBeFalse)
			got, err := store.Get(ctx, e.ID)
			So(err, ShouldBeNil)
			So(got.ResultsFile, ShouldEqual, "a2.racecheck")
			So(got.Results, ShouldEqual, feed)
		})
	})
}

func TestService_StopAfterCancel(t *testing.T) {
	Convey("Given a busy worker and a cancelled start context", t, func() {
		ctx := context.Background()
		startCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		store := &gatedStore{InMemoryStore: repository.NewInMemoryStore(), entered: make(chan struct{}, 1), gate: make(chan struct{})}
		svc := service.New(service.WithStore(store), service.WithWorkerCount(1), service.WithQueueSize(4))
		So(svc.Start(startCtx), ShouldBeNil)

		a, err := svc.CreateEvent(ctx, input())
		So(err, ShouldBeNil)
		b, err := svc.CreateEvent(ctx, input())
		So(err, ShouldBeNil)

		_, err = svc.SubmitResults(ctx, a.ID, "a.racecheck", []byte(feed))
		So(err, ShouldBeNil)
		<-store.entered
		_, err = svc.SubmitResults(ctx, b.ID, "b.racecheck", []byte(feed))
		So(err, ShouldBeNil)
		cancel()
		close(store.gate)

		Convey("When the service stops", func() {
			sctx, scancel := context.WithTimeout(ctx, 3*time.Second)
			defer scancel()
			So(svc.Stop(sctx), ShouldBeNil)

			Convey("Then the queued import was still applied", func() {
				got, err := store.Get(ctx, a.ID)
				So(err, ShouldBeNil)
				So(got.ResultsFile, ShouldEqual, "a.racecheck")
				got, err = store.Get(ctx, b.ID)
				So(err, ShouldBeNil)
				So(got.ResultsFile, ShouldEqual, "b.racecheck")
			})
		})
	})
}

// gatedStore blocks Update until the gate is opened.
type gatedStore struct {
	*repository.InMemoryStore
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedStore) Update(ctx context.Context, e model.Event) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.gate
	return g.InMemoryStore.Update(ctx, e)
}

func TestService_Backpressure(t *testing.T) {
	Convey("Given one worker stuck on an import and a queue of one", t, func() {
		ctx := context.Background()
		store := &gatedStore{InMemoryStore: repository.NewInMemoryStore(), entered: make(chan struct{}, 1), gate: make(chan struct{})}
		svc := startService(service.WithStore(store), service.WithWorkerCount(1), service.WithQueueSize(1))
		e, err := svc.CreateEvent(ctx, input())
		So(err, ShouldBeNil)

		_, err = svc.SubmitResults(ctx, e.ID, "a.racecheck", []byte(feed+"\n;1"))
		So(err, ShouldBeNil)
		<-store.entered
		_, err = svc.SubmitResults(ctx, e.ID, "b.racecheck", []byte(feed+"\n;2"))
		So(err, ShouldBeNil)

		Convey("When a third upload arrives", func() {
			third := []byte(feed + "\n;3")
			_, err := svc.SubmitResults(ctx, e.ID, "c.racecheck", third)

			Convey("Then it is refused and can be retried later", func() {
				So(errors.Is(err, service.ErrBackpressure), ShouldBeTrue)

				close(store.gate)
				So(waitQueueEmpty(svc), ShouldBeTrue)
				ack, err := svc.SubmitResults(ctx, e.ID, "c.racecheck", third)
				So(err, ShouldBeNil)
				So(ack.Duplicate, ShouldBeFalse)
				stopService(svc)
			})
		})
	})
}

func waitQueueEmpty(svc *service.Service) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if svc.GetStats(context.Background()).QueueLength == 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
