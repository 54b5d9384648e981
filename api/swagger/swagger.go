package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Evlin Scheduler API",
        "description": "Course scheduling and session check-in service for homeschool families",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Students", "description": "Student roster"},
        {"name": "Courses", "description": "Course catalog"},
        {"name": "Availability", "description": "Weekly availability windows"},
        {"name": "Conflicts", "description": "Scheduling conflict checks"},
        {"name": "Schedules", "description": "Schedule proposal and confirmation"},
        {"name": "Sessions", "description": "Session lifecycle and check-in"},
        {"name": "Stats", "description": "Check-in statistics and audit trail"}
    ],
    "paths": {
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "List students",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Students"],
                "summary": "Register student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/availability": {
            "get": {
                "tags": ["Availability"],
                "summary": "List availability grouped by day",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Availability"],
                "summary": "Declare availability window",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddAvailabilityRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List a student's schedules",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/sessions": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List sessions on a date",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/sessions/missed": {
            "get": {
                "tags": ["Sessions"],
                "summary": "List unresolved missed sessions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/checkin-stats": {
            "get": {
                "tags": ["Stats"],
                "summary": "Aggregate check-in statistics",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/checkin-log": {
            "get": {
                "tags": ["Stats"],
                "summary": "Audit trail, newest first",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/checkin-export": {
            "get": {
                "tags": ["Stats"],
                "summary": "Download audit trail as CSV",
                "produces": ["text/csv"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "CSV payload"}
                }
            }
        },
        "/students/{id}/week-progress": {
            "get": {
                "tags": ["Stats"],
                "summary": "Per-day progress for one week",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "date", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/sweep": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Mark one student's overdue pending sessions missed",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/SweepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "Search the course catalog",
                "parameters": [
                    {"name": "subject", "in": "query", "type": "string"},
                    {"name": "gradeLevel", "in": "query", "type": "integer"},
                    {"name": "difficulty", "in": "query", "type": "string"},
                    {"name": "activeOnly", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get course by id or code",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/courses/code/{code}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get course by catalog code",
                "parameters": [
                    {"name": "code", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/conflicts/check": {
            "post": {
                "tags": ["Conflicts"],
                "summary": "Check a proposed slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckConflictRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/propose": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Propose a schedule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ProposeScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get schedule with slots",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}/confirm": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Confirm schedule and materialize sessions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/sweep": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Mark overdue pending sessions missed",
                "parameters": [
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/SweepRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/checkin": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Check in a pending session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/CheckinRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Session is not pending", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/cancel": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Skip a pending or missed session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/reschedule": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Manually reschedule a missed session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/reschedule-options": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Ranked replacement slot candidates",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "studentId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateStudentRequest": {
            "type": "object",
            "properties": {
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "grade_level": {"type": "integer"},
                "parent_name": {"type": "string"},
                "parent_email": {"type": "string"},
                "notes": {"type": "string"}
            },
            "required": ["first_name", "last_name"]
        },
        "AddAvailabilityRequest": {
            "type": "object",
            "properties": {
                "day_of_week": {"type": "integer", "description": "0=Monday .. 6=Sunday"},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "11:00"},
                "preference": {"type": "string", "enum": ["preferred", "available", "avoid"]}
            },
            "required": ["start_time", "end_time"]
        },
        "CheckConflictRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "day_of_week": {"type": "integer", "description": "0=Monday .. 6=Sunday"},
                "start_time": {"type": "string", "example": "10:00"},
                "end_time": {"type": "string", "example": "11:00"}
            },
            "required": ["student_id", "start_time", "end_time"]
        },
        "ProposeScheduleRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "course_code": {"type": "string"},
                "duration_weeks": {"type": "integer"},
                "slots": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/SlotInput"}
                }
            },
            "required": ["student_id", "course_code", "slots"]
        },
        "SlotInput": {
            "type": "object",
            "properties": {
                "day_of_week": {"type": "integer", "description": "0=Monday .. 6=Sunday"},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "10:30"},
                "location": {"type": "string"}
            },
            "required": ["start_time", "end_time"]
        },
        "CheckinRequest": {
            "type": "object",
            "properties": {
                "notes": {"type": "string"}
            }
        },
        "SweepRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "auto_reschedule": {"type": "boolean"}
            }
        },
        "RescheduleRequest": {
            "type": "object",
            "properties": {
                "new_date": {"type": "string", "example": "2026-03-04"},
                "new_start": {"type": "string", "example": "14:00"},
                "new_end": {"type": "string", "example": "15:00"}
            },
            "required": ["new_date", "new_start", "new_end"]
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
