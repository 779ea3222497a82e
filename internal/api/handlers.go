package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/gmsas95/dosetrack/internal/dateutil"
	"github.com/gmsas95/dosetrack/internal/goals"
	"github.com/gmsas95/dosetrack/internal/meds"
)

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// Medications

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	list, err := s.meds.Medications()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"medications": list})
}

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var in meds.MedicationInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	med, err := s.meds.CreateMedication(in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(med)
}

func (s *Server) handleGetMedication(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	med, err := s.meds.Medication(id)
	if err != nil {
		return err
	}
	return c.JSON(med)
}

func (s *Server) handleUpdateMedication(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var upd meds.MedicationUpdate
	if err := c.BodyParser(&upd); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	med, err := s.meds.UpdateMedication(id, upd)
	if err != nil {
		return err
	}
	return c.JSON(med)
}

func (s *Server) handleDeleteMedication(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := s.meds.DeleteMedication(id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type manualEntryRequest struct {
	Date   string          `json:"date"`
	Time   string          `json:"time"`
	Status meds.DoseStatus `json:"status"`
}

func (s *Server) handleAddManualEntry(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req manualEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	entry, err := s.meds.AddManualEntry(id, req.Date, req.Time, req.Status)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// Schedule

func (s *Server) handleSchedule(c *fiber.Ctx) error {
	entries, err := s.meds.Schedule()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"entries": entries})
}

func (s *Server) handleScheduleForDate(c *fiber.Ctx) error {
	date, err := dateutil.ParseDate(c.Params("date"))
	if err != nil {
		return err
	}
	doses, err := s.meds.MedicationsForDate(date)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"date": c.Params("date"), "doses": doses})
}

type statusRequest struct {
	Status meds.DoseStatus `json:"status"`
}

func (s *Server) handleUpdateStatus(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.meds.UpdateStatus(id, req.Status); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": id, "status": req.Status})
}

// Goals

func (s *Server) handleListGoals(c *fiber.Ctx) error {
	list, err := s.goals.Goals()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"goals": list})
}

func (s *Server) handleCreateGoal(c *fiber.Ctx) error {
	var in goals.GoalInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	goal, err := s.goals.CreateGoal(in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(goal)
}

func (s *Server) handleGetGoal(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	goal, err := s.goals.Goal(id)
	if err != nil {
		return err
	}
	return c.JSON(goal)
}

func (s *Server) handleUpdateGoal(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var in goals.GoalInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	goal, err := s.goals.UpdateGoal(id, in)
	if err != nil {
		return err
	}
	return c.JSON(goal)
}

func (s *Server) handleDeleteGoal(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := s.goals.DeleteGoal(id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type completeStepRequest struct {
	Completed bool `json:"completed"`
}

func (s *Server) handleCompleteStep(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req completeStepRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	step, err := s.goals.CompleteStep(id, req.Completed)
	if err != nil {
		return err
	}
	return c.JSON(step)
}

// Adherence

func (s *Server) handleAdherenceStats(c *fiber.Ctx) error {
	start, err := dateutil.ParseDate(c.Query("start"))
	if err != nil {
		return err
	}
	end, err := dateutil.ParseDate(c.Query("end"))
	if err != nil {
		return err
	}
	stats, err := s.adherence.Stats(start, end)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func (s *Server) handleWeeklyAdherence(c *fiber.Ctx) error {
	series, err := s.adherence.Weekly()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"series": series})
}

func (s *Server) handleMonthlyAdherence(c *fiber.Ctx) error {
	series, err := s.adherence.Monthly()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"series": series})
}

func (s *Server) handleAdherenceTrend(c *fiber.Ctx) error {
	series, err := s.adherence.Trend()
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"series": series})
}

func (s *Server) handleAdherenceInsights(c *fiber.Ctx) error {
	insights, err := s.adherence.Insights()
	if err != nil {
		return err
	}
	return c.JSON(insights)
}
