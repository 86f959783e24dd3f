package service

import (
	"time"

	"github.com/dunskii/lessondesk/internal/model"
	"go.uber.org/zap"
)

// Общая сцена для тестов: период с понедельника 6 января 2025,
// гибридный урок по понедельникам 09:00–09:45, слоты по 15 минут,
// индивидуальные недели 2 и 4, групповые 1 и 3.
const (
	testTenant  = int64(1)
	otherTenant = int64(2)

	testLessonID  = int64(10)
	testTermID    = int64(5)
	testTeacherID = int64(7)

	studentA = int64(100)
	parentA  = int64(1000)
	studentB = int64(101)
	parentB  = int64(1001)
)

var (
	termStart = time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
	termEnd   = time.Date(2025, time.March, 30, 0, 0, 0, 0, time.UTC)

	// Понедельник недели 2
	week2Monday = time.Date(2025, time.January, 13, 0, 0, 0, 0, time.UTC)

	// За несколько дней до недели 2: правило 24 часов заведомо выполняется
	testNow = time.Date(2025, time.January, 2, 12, 0, 0, 0, time.UTC)

	slot0900 = model.MinuteOfDay(540)
	slot0915 = model.MinuteOfDay(555)
	slot0930 = model.MinuteOfDay(570)
	slot0945 = model.MinuteOfDay(585)
)

type fixture struct {
	terms      *fakeTermStore
	lessons    *fakeLessonStore
	roster     *fakeRoster
	bookings   *fakeBookingStore
	dispatcher *fakeDispatcher

	slotSvc     *SlotService
	bookingSvc  *BookingService
	calendarSvc *CalendarService
}

func newFixture() *fixture {
	terms := &fakeTermStore{terms: map[int64]*model.Term{
		testTermID: {
			ID:        testTermID,
			TenantID:  testTenant,
			Name:      "Spring 2025",
			StartDate: termStart,
			EndDate:   termEnd,
		},
	}}

	lessons := &fakeLessonStore{lessons: map[int64]*model.RecurringLesson{
		testLessonID: {
			ID:         testLessonID,
			TenantID:   testTenant,
			TermID:     testTermID,
			Name:       "Piano",
			Weekday:    time.Monday,
			StartTime:  slot0900,
			EndTime:    slot0945,
			TeacherID:  testTeacherID,
			Instrument: "piano",
			LessonType: model.LessonTypeHybrid,
			IsActive:   true,
			Pattern: &model.HybridPattern{
				LessonID:        testLessonID,
				GroupWeeks:      []int{1, 3},
				IndividualWeeks: []int{2, 4},
				SlotDurationMin: 15,
				BookingsOpen:    true,
			},
		},
	}}

	roster := &fakeRoster{
		enrolled: map[enrollmentKey]bool{
			{testLessonID, studentA}: true,
			{testLessonID, studentB}: true,
		},
		family: map[int64][]int64{
			parentA: {studentA},
			parentB: {studentB},
		},
		counts: map[int64]int{testLessonID: 2},
	}

	bookings := &fakeBookingStore{
		teachers: map[int64]int64{testLessonID: testTeacherID},
		names:    map[int64]string{testLessonID: "Piano"},
	}

	dispatcher := &fakeDispatcher{}

	f := &fixture{
		terms:      terms,
		lessons:    lessons,
		roster:     roster,
		bookings:   bookings,
		dispatcher: dispatcher,
	}

	f.slotSvc = NewSlotService(terms, lessons, bookings)
	f.bookingSvc = NewBookingService(terms, lessons, roster, bookings, dispatcher, zap.NewNop())
	f.bookingSvc.now = func() time.Time { return testNow }
	f.calendarSvc = NewCalendarService(terms, lessons, roster, bookings)

	return f
}

// seedBooking кладёт бронирование в хранилище напрямую, минуя проверки
// сервиса: для сцен с заранее существующими COMPLETED/CANCELLED бронями
func (f *fixture) seedBooking(studentID, parentID int64, start, end model.MinuteOfDay, status model.BookingStatus) *model.Booking {
	b := &model.Booking{
		ID:            int64(900 + len(f.bookings.bookings)),
		TenantID:      testTenant,
		LessonID:      testLessonID,
		StudentID:     studentID,
		ParentID:      parentID,
		WeekNumber:    2,
		ScheduledDate: week2Monday,
		StartTime:     start,
		EndTime:       end,
		Status:        status,
	}
	f.bookings.bookings = append(f.bookings.bookings, b)
	return b
}

func (f *fixture) createInput(studentID int64, start, end model.MinuteOfDay) CreateBookingInput {
	return CreateBookingInput{
		LessonID:  testLessonID,
		StudentID: studentID,
		Week:      2,
		Date:      week2Monday,
		Start:     start,
		End:       end,
	}
}
