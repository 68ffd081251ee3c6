package birdelevator

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Controller", func() {
	var (
		mockCtrl *gomock.Controller
		motor    *MockMotor
		sensor   *MockSensor
		c        *Controller
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		motor = NewMockMotor(mockCtrl)
		sensor = NewMockSensor(mockCtrl)

		motor.EXPECT().SetMotor(Off)

		var err error
		c, err = New(motor, Setpoint(100), WithSensor(sensor))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should start invalid with the motor off", func() {
		Expect(c.State()).To(Equal(Invalid))
		Expect(c.Direction()).To(Equal(Off))
		_, ok := c.Average()
		Expect(ok).To(BeFalse())
		Expect(c.Setpoint()).To(Equal(100.0))
	})

	It("should refuse a nil motor", func() {
		_, err := New(nil)
		Expect(err).To(HaveOccurred())
	})

	It("should fail if the motor cannot be switched off", func() {
		m := NewMockMotor(mockCtrl)
		m.EXPECT().SetMotor(Off).Return(errors.New("relay stuck"))

		_, err := New(m)
		Expect(errors.Is(err, ErrMotor)).To(BeTrue())
	})

	It("should move up below the band", func() {
		motor.EXPECT().SetMotor(Up)

		s, err := c.Feed(90)

		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(MovingUp))
		Expect(c.Direction()).To(Equal(Up))
	})

	It("should move down above the band", func() {
		motor.EXPECT().SetMotor(Down)

		s, err := c.Feed(110)

		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(MovingDown))
	})

	It("should wait inside the band without touching the motor", func() {
		s, err := c.Feed(103)

		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(Waiting))
		Expect(c.Direction()).To(Equal(Off))
	})

	It("should not repeat a direction already applied", func() {
		motor.EXPECT().SetMotor(Up).Times(1)

		for i := 0; i < 4; i++ {
			s, err := c.Feed(80)
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal(MovingUp))
		}
	})

	It("should decide on the average, not the last sample", func() {
		gomock.InOrder(
			motor.EXPECT().SetMotor(Down),
			motor.EXPECT().SetMotor(Off),
		)

		s, _ := c.Feed(110)
		Expect(s).To(Equal(MovingDown))

		s, _ = c.Feed(100)
		Expect(s).To(Equal(Waiting))
		avg, _ := c.Average()
		Expect(avg).To(Equal(105.0))
	})

	It("should fall back to invalid on a non-finite sample", func() {
		motor.EXPECT().SetMotor(Up)
		motor.EXPECT().SetMotor(Off)

		c.Feed(90)
		s, err := c.Feed(math.NaN())

		Expect(errors.Is(err, ErrNonFinite)).To(BeTrue())
		Expect(s).To(Equal(Invalid))
		Expect(c.Direction()).To(Equal(Off))
		Expect(c.Samples()).To(BeEmpty())
	})

	It("should poll the sensor", func() {
		sensor.EXPECT().Distance().Return(90.0, nil)
		motor.EXPECT().SetMotor(Up)

		s, err := c.Poll()

		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(MovingUp))
		Expect(c.Samples()).To(Equal([]float64{90}))
	})

	It("should switch off when the sensor fails", func() {
		sensorErr := errors.New("i2c nack")
		gomock.InOrder(
			sensor.EXPECT().Distance().Return(90.0, nil),
			sensor.EXPECT().Distance().Return(0.0, sensorErr),
		)
		gomock.InOrder(
			motor.EXPECT().SetMotor(Up),
			motor.EXPECT().SetMotor(Off),
		)

		c.Poll()
		s, err := c.Poll()

		Expect(errors.Is(err, sensorErr)).To(BeTrue())
		Expect(s).To(Equal(Invalid))
		Expect(c.Samples()).To(BeEmpty())
	})

	It("should fail to poll without a sensor", func() {
		c.Options(WithSensor(nil))

		_, err := c.Poll()

		Expect(errors.Is(err, ErrNoSensor)).To(BeTrue())
	})

	It("should switch off when the motor fails", func() {
		gomock.InOrder(
			motor.EXPECT().SetMotor(Up).Return(errors.New("relay stuck")),
			motor.EXPECT().SetMotor(Off),
		)

		s, err := c.Feed(90)

		Expect(errors.Is(err, ErrMotor)).To(BeTrue())
		Expect(s).To(Equal(Invalid))
		Expect(c.State()).To(Equal(Invalid))
		Expect(c.Direction()).To(Equal(Off))
	})

	It("should retry a direction that failed", func() {
		gomock.InOrder(
			motor.EXPECT().SetMotor(Off).Return(errors.New("relay stuck")),
			motor.EXPECT().SetMotor(Off),
		)

		c.Stop()
		s, err := c.Feed(100)

		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(Waiting))
	})

	It("should always switch off on stop", func() {
		motor.EXPECT().SetMotor(Down)
		motor.EXPECT().SetMotor(Off)

		c.Feed(120)
		Expect(c.Stop()).To(Succeed())
		Expect(c.State()).To(Equal(Invalid))
		_, ok := c.Average()
		Expect(ok).To(BeFalse())
	})

	It("should restore options", func() {
		old, err := c.Options(Setpoint(50))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Setpoint()).To(Equal(50.0))

		_, err = c.Options(old)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Setpoint()).To(Equal(100.0))
	})

	It("should use the noise band", func() {
		c.Options(Band(20))
		s, _ := c.Feed(85)
		Expect(s).To(Equal(Waiting))

		motor.EXPECT().SetMotor(Up)
		_, err := c.Options(Band(-1))
		Expect(err).NotTo(HaveOccurred())
		Expect(c.State()).To(Equal(MovingUp))

		s, _ = c.Feed(99)
		Expect(s).To(Equal(MovingUp))
	})

	It("should follow a new setpoint without waiting for a sample", func() {
		gomock.InOrder(
			motor.EXPECT().SetMotor(Up),
			motor.EXPECT().SetMotor(Off),
		)

		c.Feed(60)
		c.Options(Setpoint(62))

		Expect(c.State()).To(Equal(Waiting))
		Expect(c.Direction()).To(Equal(Off))
	})

	It("should report a motor failure while applying an option", func() {
		gomock.InOrder(
			motor.EXPECT().SetMotor(Up).Return(errors.New("relay stuck")),
			motor.EXPECT().SetMotor(Off),
		)

		c.Feed(100)
		_, err := c.Options(Setpoint(200))

		Expect(errors.Is(err, ErrMotor)).To(BeTrue())
		Expect(c.State()).To(Equal(Invalid))
	})

	It("should average over the history size", func() {
		c.Options(HistorySize(2))
		gomock.InOrder(
			motor.EXPECT().SetMotor(Down),
			motor.EXPECT().SetMotor(Off),
			motor.EXPECT().SetMotor(Up),
		)

		c.Feed(200)
		c.Feed(0)
		s, _ := c.Feed(0)

		Expect(s).To(Equal(MovingUp))
		Expect(c.Samples()).To(Equal([]float64{0, 0}))
	})

	It("should keep the newest samples when the history is resized", func() {
		motor.EXPECT().SetMotor(Up)

		c.Feed(50)
		_, err := c.Options(HistorySize(3))

		Expect(err).NotTo(HaveOccurred())
		Expect(c.State()).To(Equal(MovingUp))
		Expect(c.Direction()).To(Equal(Up))
		avg, ok := c.Average()
		Expect(ok).To(BeTrue())
		Expect(avg).To(Equal(50.0))
	})

	It("should decide again when the history shrinks", func() {
		gomock.InOrder(
			motor.EXPECT().SetMotor(Down),
			motor.EXPECT().SetMotor(Off),
			motor.EXPECT().SetMotor(Up),
		)

		c.Feed(130)
		s, _ := c.Feed(80)
		Expect(s).To(Equal(Waiting))

		c.Options(HistorySize(1))

		Expect(c.Samples()).To(Equal([]float64{80}))
		Expect(c.State()).To(Equal(MovingUp))
		Expect(c.Direction()).To(Equal(Up))
	})

	It("should switch off when the history is resized while empty", func() {
		motor.EXPECT().SetMotor(Down)
		motor.EXPECT().SetMotor(Off)

		c.Feed(130)
		c.Stop()
		c.Options(HistorySize(4))

		Expect(c.State()).To(Equal(Invalid))
		Expect(c.Direction()).To(Equal(Off))
	})

	It("should stay consistent under concurrent use", func() {
		sensor.EXPECT().Distance().Return(90.0, nil).AnyTimes()
		motor.EXPECT().SetMotor(gomock.Any()).AnyTimes()

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(4)
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				for j := 0; j < 50; j++ {
					c.Feed(float64(80 + j%40))
				}
			}()
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				for j := 0; j < 50; j++ {
					c.Poll()
				}
			}()
			go func() {
				defer wg.Done()
				defer GinkgoRecover()
				for j := 0; j < 20; j++ {
					c.Stop()
				}
			}()
			go func(i int) {
				defer wg.Done()
				defer GinkgoRecover()
				for j := 0; j < 20; j++ {
					c.Options(HistorySize(1+(i+j)%Size), Setpoint(float64(90+j)))
					c.State()
					c.Average()
					c.Samples()
				}
			}(i)
		}
		wg.Wait()

		Expect(c.Direction()).To(Equal(c.State().Direction()))

		Expect(c.Stop()).To(Succeed())
		Expect(c.State()).To(Equal(Invalid))
		Expect(c.Direction()).To(Equal(Off))
	})

	Context("when running", func() {
		var (
			ctx    context.Context
			cancel context.CancelFunc
			done   chan error
			buf    *gbytes.Buffer
		)

		BeforeEach(func() {
			buf = gbytes.NewBuffer()
			c.Options(
				Interval(time.Millisecond),
				WithLogger(log.New(buf, "", 0)),
			)
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan error, 1)
		})

		AfterEach(func() {
			cancel()
		})

		start := func() {
			go func() {
				done <- c.Run(ctx)
			}()
		}

		It("should follow the sensor until cancelled", func() {
			sensor.EXPECT().Distance().Return(90.0, nil).AnyTimes()
			gomock.InOrder(
				motor.EXPECT().SetMotor(Up),
				motor.EXPECT().SetMotor(Off),
			)

			start()
			Eventually(c.State).Should(Equal(MovingUp))
			Eventually(buf).Should(gbytes.Say("INVALID -> MOVING_UP"))

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
			Expect(c.Direction()).To(Equal(Off))
		})

		It("should keep going after a sensor error", func() {
			gomock.InOrder(
				sensor.EXPECT().Distance().Return(0.0, errors.New("i2c nack")),
				sensor.EXPECT().Distance().Return(120.0, nil).AnyTimes(),
			)
			gomock.InOrder(
				motor.EXPECT().SetMotor(Down),
				motor.EXPECT().SetMotor(Off),
			)

			start()
			Eventually(buf).Should(gbytes.Say("could not read sensor: i2c nack"))
			Eventually(c.State).Should(Equal(MovingDown))

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})

		It("should stop on a motor failure", func() {
			sensor.EXPECT().Distance().Return(90.0, nil)
			gomock.InOrder(
				motor.EXPECT().SetMotor(Up).Return(errors.New("relay stuck")),
				motor.EXPECT().SetMotor(Off).Times(2),
			)

			start()

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(errors.Is(err, ErrMotor)).To(BeTrue())
		})

		It("should stop without a sensor", func() {
			c.Options(WithSensor(nil))
			motor.EXPECT().SetMotor(Off)

			start()

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(errors.Is(err, ErrNoSensor)).To(BeTrue())
		})
	})
})
